// Package flow holds the compiled command model and the YAML flow loader.
package flow

// CommandType is the YAML key a command was compiled from.
type CommandType string

// Command type constants.
const (
	// Navigation & Interaction
	CmdTapOn              CommandType = "tapOn"
	CmdDoubleTapOn        CommandType = "doubleTapOn"
	CmdLongPressOn        CommandType = "longPressOn"
	CmdTapOnPoint         CommandType = "tapOnPoint"
	CmdSwipe              CommandType = "swipe"
	CmdScroll             CommandType = "scroll"
	CmdScrollUntilVisible CommandType = "scrollUntilVisible"
	CmdBack               CommandType = "back"
	CmdHideKeyboard       CommandType = "hideKeyboard"

	// Text
	CmdInputText             CommandType = "inputText"
	CmdInputRandom           CommandType = "inputRandom"
	CmdInputRandomEmail      CommandType = "inputRandomEmail"
	CmdInputRandomNumber     CommandType = "inputRandomNumber"
	CmdInputRandomPersonName CommandType = "inputRandomPersonName"
	CmdInputRandomText       CommandType = "inputRandomText"
	CmdEraseText             CommandType = "eraseText"
	CmdCopyTextFrom          CommandType = "copyTextFrom"
	CmdPasteText             CommandType = "pasteText"
	CmdSetClipboard          CommandType = "setClipboard"

	// Assertions
	CmdAssertVisible         CommandType = "assertVisible"
	CmdAssertNotVisible      CommandType = "assertNotVisible"
	CmdAssertTrue            CommandType = "assertTrue"
	CmdAssertCondition       CommandType = "assertCondition"
	CmdAssertEqual           CommandType = "assertEqual"
	CmdAssertNotEqual        CommandType = "assertNotEqual"
	CmdExtendedWaitUntil     CommandType = "extendedWaitUntil"
	CmdAssertNoDefectsWithAI CommandType = "assertNoDefectsWithAI"
	CmdAssertWithAI          CommandType = "assertWithAI"
	CmdExtractTextWithAI     CommandType = "extractTextWithAI"

	// App Management
	CmdLaunchApp      CommandType = "launchApp"
	CmdStopApp        CommandType = "stopApp"
	CmdKillApp        CommandType = "killApp"
	CmdClearState     CommandType = "clearState"
	CmdClearKeychain  CommandType = "clearKeychain"
	CmdSetPermissions CommandType = "setPermissions"

	// Device Control
	CmdSetLocation        CommandType = "setLocation"
	CmdSetOrientation     CommandType = "setOrientation"
	CmdSetAirplaneMode    CommandType = "setAirplaneMode"
	CmdToggleAirplaneMode CommandType = "toggleAirplaneMode"
	CmdTravel             CommandType = "travel"
	CmdOpenLink           CommandType = "openLink"
	CmdOpenBrowser        CommandType = "openBrowser"

	// Flow Control
	CmdRepeat          CommandType = "repeat"
	CmdRetry           CommandType = "retry"
	CmdRunFlow         CommandType = "runFlow"
	CmdRunScript       CommandType = "runScript"
	CmdEvalScript      CommandType = "evalScript"
	CmdDefineVariables CommandType = "defineVariables"
	CmdApplyConfig     CommandType = "applyConfiguration"

	// Media
	CmdTakeScreenshot CommandType = "takeScreenshot"
	CmdStartRecording CommandType = "startRecording"
	CmdStopRecording  CommandType = "stopRecording"
	CmdAddMedia       CommandType = "addMedia"

	// Other
	CmdPressKey              CommandType = "pressKey"
	CmdWaitForAnimationToEnd CommandType = "waitForAnimationToEnd"
)

// Command is one compiled, immutable flow command.
type Command interface {
	Type() CommandType
	IsOptional() bool
	Label() string
	// Describe returns the default human-readable description.
	Describe() string
	// Evaluate returns a copy with ${...} expressions substituted.
	Evaluate(e *Evaluator) Command
}

// Composite commands own a child command list.
type Composite interface {
	Command
	SubCommands() []Command
	SubConfig() *Config
}

// SelectorCommand is implemented by commands that target one element.
type SelectorCommand interface {
	ElementSelector() *Selector
}

// BaseCommand contains common fields for all commands.
type BaseCommand struct {
	CommandType  CommandType `yaml:"-"`
	Optional     bool        `yaml:"optional"`
	CommandLabel string      `yaml:"label"`
}

// Type returns the command type.
func (b *BaseCommand) Type() CommandType { return b.CommandType }

// IsOptional returns the command's own optional flag.
func (b *BaseCommand) IsOptional() bool { return b.Optional }

// Label returns the user-supplied label.
func (b *BaseCommand) Label() string { return b.CommandLabel }

func (b BaseCommand) evaluated(e *Evaluator) BaseCommand {
	b.CommandLabel = e.String(b.CommandLabel)
	return b
}

// Description returns the label if set, else the default description.
func Description(c Command) string {
	if l := c.Label(); l != "" {
		return l
	}
	return c.Describe()
}

// IsOptional reports whether a failure of c is downgraded to a warning:
// either the command or its element selector is marked optional.
func IsOptional(c Command) bool {
	if c.IsOptional() {
		return true
	}
	if sc, ok := c.(SelectorCommand); ok {
		if s := sc.ElementSelector(); s != nil && s.Optional {
			return true
		}
	}
	return false
}

// IsVisible reports whether a command is listed in user-facing output.
func IsVisible(c Command) bool {
	switch c.(type) {
	case *DefineVariablesCommand, *ApplyConfigurationCommand:
		return false
	}
	return true
}

// GetConfig returns the configuration carried by the first
// ApplyConfigurationCommand in cmds, or nil.
func GetConfig(cmds []Command) *Config {
	for _, c := range cmds {
		if ac, ok := c.(*ApplyConfigurationCommand); ok {
			return ac.Config
		}
	}
	return nil
}

// SplitDefineVariables separates defineVariables commands from the rest,
// preserving order in both lists.
func SplitDefineVariables(cmds []Command) (defines, rest []Command) {
	for _, c := range cmds {
		if _, ok := c.(*DefineVariablesCommand); ok {
			defines = append(defines, c)
		} else {
			rest = append(rest, c)
		}
	}
	return defines, rest
}
