package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single Maestro YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse compiles Maestro YAML content into a Flow. The compiled command
// list starts with an applyConfiguration command, followed by a
// defineVariables command when the config declares env.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	p := &parser{sourcePath: sourcePath, stack: map[string]bool{absPath(sourcePath): true}}
	return p.parse(data)
}

// parser carries per-file state. Sub-flows get a child parser that shares
// the include stack.
type parser struct {
	sourcePath string
	appID      string
	stack      map[string]bool
}

func (p *parser) parse(data []byte) (*Flow, error) {
	docs, err := decodeDocuments(data)
	if err != nil {
		return nil, &ParseError{Path: p.sourcePath, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	flow := &Flow{SourcePath: p.sourcePath}
	var body *yaml.Node
	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: p.sourcePath, Line: 1, Message: "empty flow file"}
	case 1:
		body = docs[0]
	case 2:
		if err := p.parseConfig(docs[0], flow); err != nil {
			return nil, err
		}
		body = docs[1]
	default:
		return nil, &ParseError{Path: p.sourcePath, Line: docs[2].Line, Message: "a flow has at most a config and a command document"}
	}

	if body.Kind != yaml.SequenceNode {
		return nil, &ParseError{Path: p.sourcePath, Line: body.Line, Message: "invalid commands: expected a list"}
	}
	cmds, err := p.parseSequence(body.Content)
	if err != nil {
		return nil, err
	}

	cfg := flow.Config
	flow.Commands = append(flow.Commands, &ApplyConfigurationCommand{
		BaseCommand: BaseCommand{CommandType: CmdApplyConfig},
		Config:      &cfg,
	})
	if len(flow.Config.Env) > 0 {
		flow.Commands = append(flow.Commands, &DefineVariablesCommand{
			BaseCommand: BaseCommand{CommandType: CmdDefineVariables},
			Env:         flow.Config.Env,
		})
	}
	flow.Commands = append(flow.Commands, cmds...)
	return flow, nil
}

// decodeDocuments returns the root node of every non-empty YAML document.
// Block scalars may contain "---" lines; the decoder keeps them intact.
func decodeDocuments(data []byte) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*yaml.Node
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			continue
		}
		docs = append(docs, root)
	}
}

// parseConfig decodes the config document. Hooks are compiled after appId
// is known so that their commands inherit it.
func (p *parser) parseConfig(node *yaml.Node, flow *Flow) error {
	if node.Kind != yaml.MappingNode {
		return &ParseError{Path: p.sourcePath, Line: node.Line, Message: "invalid config: expected a mapping"}
	}

	var hooks struct {
		OnFlowStart    []yaml.Node `yaml:"onFlowStart"`
		OnFlowComplete []yaml.Node `yaml:"onFlowComplete"`
	}
	var config Config
	for _, into := range []interface{}{&config, &hooks} {
		if err := node.Decode(into); err != nil {
			return &ParseError{Path: p.sourcePath, Line: node.Line, Message: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	switch {
	case config.AppID != "":
	case config.URL != "":
		config.AppID = config.URL
	default:
		config.AppID = p.appID
	}
	p.appID = config.AppID

	var err error
	if config.OnFlowStart, err = p.parseNodes(hooks.OnFlowStart); err != nil {
		return err
	}
	if config.OnFlowComplete, err = p.parseNodes(hooks.OnFlowComplete); err != nil {
		return err
	}
	flow.Config = config
	return nil
}

func (p *parser) parseSequence(nodes []*yaml.Node) ([]Command, error) {
	cmds := make([]Command, 0, len(nodes))
	for _, node := range nodes {
		cmd, err := p.parseCommand(node)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (p *parser) parseNodes(nodes []yaml.Node) ([]Command, error) {
	var cmds []Command
	for i := range nodes {
		cmd, err := p.parseCommand(&nodes[i])
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (p *parser) parseCommand(node *yaml.Node) (Command, error) {
	// Handle scalar nodes like "- waitForAnimationToEnd" (no colon, no params)
	if node.Kind == yaml.ScalarNode {
		cmdType := node.Value
		if !isCommandType(cmdType) {
			return nil, &ParseError{
				Path:    p.sourcePath,
				Line:    node.Line,
				Message: fmt.Sprintf("unknown command: %s", cmdType),
			}
		}
		emptyNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
		return p.decodeCommand(CommandType(cmdType), emptyNode)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{
			Path:    p.sourcePath,
			Line:    node.Line,
			Message: "command must be a mapping or command name",
		}
	}

	cmdType, valueNode := extractCommandType(node)
	if cmdType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    p.sourcePath,
			Line:    node.Line,
			Message: "unknown command",
		}
	}

	return p.decodeCommand(CommandType(cmdType), valueNode)
}

func extractCommandType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isCommandType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

var commandTypes = map[CommandType]bool{
	CmdTapOn: true, CmdDoubleTapOn: true, CmdLongPressOn: true, CmdTapOnPoint: true,
	CmdSwipe: true, CmdScroll: true, CmdScrollUntilVisible: true, CmdBack: true, CmdHideKeyboard: true,
	CmdInputText: true, CmdInputRandom: true, CmdInputRandomEmail: true, CmdInputRandomNumber: true,
	CmdInputRandomPersonName: true, CmdInputRandomText: true, CmdEraseText: true,
	CmdCopyTextFrom: true, CmdPasteText: true, CmdSetClipboard: true,
	CmdAssertVisible: true, CmdAssertNotVisible: true, CmdAssertTrue: true, CmdAssertCondition: true,
	CmdAssertEqual: true, CmdAssertNotEqual: true, CmdExtendedWaitUntil: true,
	CmdAssertNoDefectsWithAI: true, CmdAssertWithAI: true, CmdExtractTextWithAI: true,
	CmdLaunchApp: true, CmdStopApp: true, CmdKillApp: true, CmdClearState: true,
	CmdClearKeychain: true, CmdSetPermissions: true,
	CmdSetLocation: true, CmdSetOrientation: true, CmdSetAirplaneMode: true,
	CmdToggleAirplaneMode: true, CmdTravel: true, CmdOpenLink: true, CmdOpenBrowser: true,
	CmdRepeat: true, CmdRetry: true, CmdRunFlow: true, CmdRunScript: true, CmdEvalScript: true,
	CmdDefineVariables: true,
	CmdTakeScreenshot: true, CmdStartRecording: true, CmdStopRecording: true, CmdAddMedia: true,
	CmdPressKey: true, CmdWaitForAnimationToEnd: true,
}

func isCommandType(key string) bool {
	return commandTypes[CommandType(key)]
}

// decodeMapping decodes a mapping node into v. Scalars are left to the caller.
func (p *parser) decodeMapping(node *yaml.Node, v interface{}) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	if err := node.Decode(v); err != nil {
		return wrapParseError(p.sourcePath, node.Line, err)
	}
	return nil
}

func (p *parser) decodeSelector(node *yaml.Node) (Selector, error) {
	var s Selector
	if err := node.Decode(&s); err != nil {
		return s, wrapParseError(p.sourcePath, node.Line, err)
	}
	return s, nil
}

//nolint:gocyclo
func (p *parser) decodeCommand(cmdType CommandType, valueNode *yaml.Node) (Command, error) {
	base := BaseCommand{CommandType: cmdType}

	switch cmdType {
	case CmdTapOn, CmdDoubleTapOn, CmdLongPressOn:
		return p.parseTapOn(cmdType, valueNode)

	case CmdTapOnPoint:
		c := &TapOnPointCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Point = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSwipe:
		c := &SwipeCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Direction = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.Direction = strings.ToUpper(c.Direction)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdScroll:
		c := &ScrollCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdScrollUntilVisible:
		c := &ScrollUntilVisibleCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Selector.Text = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdBack:
		c := &BackPressCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdHideKeyboard:
		c := &HideKeyboardCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdInputText:
		c := &InputTextCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Text = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdInputRandom, CmdInputRandomEmail, CmdInputRandomNumber, CmdInputRandomPersonName, CmdInputRandomText:
		c := &InputRandomCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.DataType = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		switch cmdType {
		case CmdInputRandomEmail:
			c.DataType = "EMAIL"
		case CmdInputRandomNumber:
			c.DataType = "NUMBER"
		case CmdInputRandomPersonName:
			c.DataType = "PERSON_NAME"
		case CmdInputRandomText:
			c.DataType = "TEXT"
		}
		if c.DataType == "" {
			c.DataType = "TEXT"
		}
		c.DataType = strings.ToUpper(c.DataType)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdEraseText:
		c := &EraseTextCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			var chars int
			if err := valueNode.Decode(&chars); err == nil {
				c.Characters = &chars
			}
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdCopyTextFrom:
		c := &CopyTextFromCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		sel, err := p.decodeSelector(valueNode)
		if err != nil {
			return nil, err
		}
		c.Selector = sel
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdPasteText:
		c := &PasteTextCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSetClipboard:
		c := &SetClipboardCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Text = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdAssertVisible, CmdAssertNotVisible, CmdAssertTrue, CmdAssertCondition,
		CmdAssertEqual, CmdAssertNotEqual, CmdExtendedWaitUntil:
		return p.parseAssertion(cmdType, valueNode)

	case CmdAssertNoDefectsWithAI:
		c := &AssertNoDefectsWithAICommand{}
		optional, err := p.aiOptional(valueNode, c)
		if err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		c.Optional = optional
		return c, nil

	case CmdAssertWithAI:
		c := &AssertWithAICommand{}
		optional := true
		if valueNode.Kind == yaml.ScalarNode {
			c.Assertion = valueNode.Value
		} else {
			var err error
			if optional, err = p.aiOptional(valueNode, c); err != nil {
				return nil, err
			}
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		c.Optional = optional
		return c, nil

	case CmdExtractTextWithAI:
		c := &ExtractTextWithAICommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Query = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		if c.OutputVariable == "" {
			c.OutputVariable = DefaultAIOutputVariable
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdLaunchApp:
		c := &LaunchAppCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.AppID = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.AppID = p.orAppID(c.AppID)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdStopApp:
		c := &StopAppCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.AppID = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.AppID = p.orAppID(c.AppID)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdKillApp:
		c := &KillAppCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.AppID = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.AppID = p.orAppID(c.AppID)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdClearState:
		c := &ClearStateCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.AppID = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.AppID = p.orAppID(c.AppID)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdClearKeychain:
		c := &ClearKeychainCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSetPermissions:
		c := &SetPermissionsCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.AppID = p.orAppID(c.AppID)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSetLocation:
		c := &SetLocationCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSetOrientation:
		c := &SetOrientationCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Orientation = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.Orientation = strings.ToUpper(c.Orientation)
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdSetAirplaneMode:
		c := &SetAirplaneModeCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			switch strings.ToLower(valueNode.Value) {
			case "enabled", "true", "on":
				c.Enabled = true
			case "disabled", "false", "off":
				c.Enabled = false
			default:
				return nil, &ParseError{
					Path:    p.sourcePath,
					Line:    valueNode.Line,
					Message: fmt.Sprintf("invalid airplane mode: %s", valueNode.Value),
				}
			}
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdToggleAirplaneMode:
		c := &ToggleAirplaneModeCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdTravel:
		c := &TravelCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		if c.Speed <= 0 {
			c.Speed = DefaultTravelSpeedMps
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdOpenLink, CmdOpenBrowser:
		c := &OpenLinkCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Link = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		if cmdType == CmdOpenBrowser {
			browser := true
			c.Browser = &browser
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdRepeat:
		return p.parseRepeat(valueNode)

	case CmdRetry:
		return p.parseRetry(valueNode)

	case CmdRunFlow:
		return p.parseRunFlow(valueNode)

	case CmdRunScript:
		return p.parseRunScript(valueNode)

	case CmdEvalScript:
		c := &EvalScriptCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Script = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.Script = strings.TrimSpace(c.Script)
		c.Script = strings.TrimSuffix(strings.TrimPrefix(c.Script, "${"), "}")
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdDefineVariables:
		c := &DefineVariablesCommand{BaseCommand: base, Env: make(map[string]string)}
		if valueNode.Kind == yaml.MappingNode {
			for i := 0; i < len(valueNode.Content)-1; i += 2 {
				c.Env[valueNode.Content[i].Value] = valueNode.Content[i+1].Value
			}
		}
		return c, nil

	case CmdTakeScreenshot:
		c := &TakeScreenshotCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Path = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdStartRecording:
		c := &StartRecordingCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Path = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdStopRecording:
		c := &StopRecordingCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdAddMedia:
		c := &AddMediaCommand{}
		if valueNode.Kind == yaml.SequenceNode {
			if err := valueNode.Decode(&c.Files); err != nil {
				return nil, wrapParseError(p.sourcePath, valueNode.Line, err)
			}
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		for i, f := range c.Files {
			c.Files[i] = p.resolve(f)
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdPressKey:
		c := &PressKeyCommand{}
		if valueNode.Kind == yaml.ScalarNode {
			c.Key = valueNode.Value
		} else if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil

	case CmdWaitForAnimationToEnd:
		c := &WaitForAnimationToEndCommand{}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		c.BaseCommand = withType(c.BaseCommand, cmdType)
		return c, nil
	}

	return nil, &ParseError{
		Path:    p.sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unknown command: %s", cmdType),
	}
}

func withType(b BaseCommand, t CommandType) BaseCommand {
	b.CommandType = t
	return b
}

func (p *parser) orAppID(appID string) string {
	if appID == "" {
		return p.appID
	}
	return appID
}

// parseTapOn compiles tapOn, doubleTapOn and longPressOn. A tapOn with
// only a point compiles into a TapOnPointCommand.
func (p *parser) parseTapOn(cmdType CommandType, valueNode *yaml.Node) (Command, error) {
	c := &TapOnElementCommand{}
	if err := p.decodeMapping(valueNode, c); err != nil {
		return nil, err
	}
	sel, err := p.decodeSelector(valueNode)
	if err != nil {
		return nil, err
	}
	c.Selector = sel
	c.BaseCommand = withType(c.BaseCommand, cmdType)

	switch cmdType {
	case CmdDoubleTapOn:
		c.Repeat = 2
		if c.DelayMs == 0 {
			c.DelayMs = 100
		}
	case CmdLongPressOn:
		c.LongPress = true
	}

	if sel.IsEmpty() && c.Point != "" {
		return &TapOnPointCommand{
			BaseCommand:           withType(c.BaseCommand, CmdTapOnPoint),
			Point:                 c.Point,
			LongPress:             c.LongPress,
			Repeat:                c.Repeat,
			DelayMs:               c.DelayMs,
			RetryTapIfNoChange:    c.RetryTapIfNoChange,
			WaitToSettleTimeoutMs: c.WaitToSettleTimeoutMs,
		}, nil
	}
	return c, nil
}

// parseAssertion compiles every assertion form into an AssertConditionCommand.
func (p *parser) parseAssertion(cmdType CommandType, valueNode *yaml.Node) (Command, error) {
	c := &AssertConditionCommand{}
	if err := p.decodeMapping(valueNode, c); err != nil {
		return nil, err
	}
	c.BaseCommand = withType(c.BaseCommand, cmdType)

	switch cmdType {
	case CmdAssertVisible:
		sel, err := p.decodeSelector(valueNode)
		if err != nil {
			return nil, err
		}
		c.Condition.Visible = &sel

	case CmdAssertNotVisible:
		sel, err := p.decodeSelector(valueNode)
		if err != nil {
			return nil, err
		}
		c.Condition.NotVisible = &sel

	case CmdAssertTrue:
		var script string
		if valueNode.Kind == yaml.ScalarNode {
			script = valueNode.Value
		} else {
			var raw struct {
				Condition string `yaml:"condition"`
			}
			if err := p.decodeMapping(valueNode, &raw); err != nil {
				return nil, err
			}
			script = raw.Condition
		}
		c.Condition.ScriptCondition = &script

	case CmdAssertEqual, CmdAssertNotEqual:
		var eq EqualityCondition
		if err := p.decodeMapping(valueNode, &eq); err != nil {
			return nil, err
		}
		if cmdType == CmdAssertEqual {
			c.Condition.Equal = &eq
		} else {
			c.Condition.NotEqual = &eq
		}

	case CmdAssertCondition, CmdExtendedWaitUntil:
		if err := p.decodeMapping(valueNode, &c.Condition); err != nil {
			return nil, err
		}
		// label and optional belong to the command
		c.Condition.Label = ""
	}

	return c, nil
}

// aiOptional decodes an AI command whose optional flag defaults to true.
func (p *parser) aiOptional(valueNode *yaml.Node, into interface{}) (bool, error) {
	if err := p.decodeMapping(valueNode, into); err != nil {
		return false, err
	}
	var raw struct {
		Optional *bool `yaml:"optional"`
	}
	if err := p.decodeMapping(valueNode, &raw); err != nil {
		return false, err
	}
	if raw.Optional == nil {
		return true, nil
	}
	return *raw.Optional, nil
}

// parseRepeat handles repeat with nested commands.
func (p *parser) parseRepeat(valueNode *yaml.Node) (Command, error) {
	var raw struct {
		Times    string      `yaml:"times"` // String for variable support
		While    *Condition  `yaml:"while"`
		Commands []yaml.Node `yaml:"commands"`
		Optional bool        `yaml:"optional"`
		Label    string      `yaml:"label"`
	}

	if err := p.decodeMapping(valueNode, &raw); err != nil {
		return nil, err
	}

	c := &RepeatCommand{
		BaseCommand: BaseCommand{
			CommandType:  CmdRepeat,
			Optional:     raw.Optional,
			CommandLabel: raw.Label,
		},
		Times:     raw.Times,
		Condition: raw.While,
	}

	cmds, err := p.parseNodes(raw.Commands)
	if err != nil {
		return nil, err
	}
	c.Commands = cmds
	return c, nil
}

// parseRetry handles retry with nested commands or a file.
func (p *parser) parseRetry(valueNode *yaml.Node) (Command, error) {
	var raw struct {
		MaxRetries string            `yaml:"maxRetries"` // String for variable support
		Commands   []yaml.Node       `yaml:"commands"`
		File       string            `yaml:"file"`
		Env        map[string]string `yaml:"env"`
		Optional   bool              `yaml:"optional"`
		Label      string            `yaml:"label"`
	}

	if err := p.decodeMapping(valueNode, &raw); err != nil {
		return nil, err
	}

	c := &RetryCommand{
		BaseCommand: BaseCommand{
			CommandType:  CmdRetry,
			Optional:     raw.Optional,
			CommandLabel: raw.Label,
		},
		MaxRetries: raw.MaxRetries,
	}

	cmds, cfg, err := p.subFlow(raw.File, raw.Commands, valueNode.Line)
	if err != nil {
		return nil, err
	}
	c.Commands = withEnv(raw.Env, cmds)
	c.Config = cfg
	c.SourceDescription = raw.File
	return c, nil
}

// parseRunFlow handles runFlow with a file or inline commands.
func (p *parser) parseRunFlow(valueNode *yaml.Node) (Command, error) {
	var raw struct {
		File     string            `yaml:"file"`
		Commands []yaml.Node       `yaml:"commands"`
		When     *Condition        `yaml:"when"`
		Env      map[string]string `yaml:"env"`
		Optional bool              `yaml:"optional"`
		Label    string            `yaml:"label"`
	}

	if valueNode.Kind == yaml.ScalarNode {
		raw.File = valueNode.Value
	} else if err := p.decodeMapping(valueNode, &raw); err != nil {
		return nil, err
	}

	cmds, cfg, err := p.subFlow(raw.File, raw.Commands, valueNode.Line)
	if err != nil {
		return nil, err
	}

	return &RunFlowCommand{
		BaseCommand: BaseCommand{
			CommandType:  CmdRunFlow,
			Optional:     raw.Optional,
			CommandLabel: raw.Label,
		},
		Commands:          withEnv(raw.Env, cmds),
		Condition:         raw.When,
		SourceDescription: raw.File,
		Config:            cfg,
	}, nil
}

// parseRunScript reads the script file relative to the flow.
func (p *parser) parseRunScript(valueNode *yaml.Node) (Command, error) {
	c := &RunScriptCommand{}
	var file string
	if valueNode.Kind == yaml.ScalarNode {
		file = valueNode.Value
	} else {
		var raw struct {
			File string `yaml:"file"`
		}
		if err := p.decodeMapping(valueNode, &raw); err != nil {
			return nil, err
		}
		if err := p.decodeMapping(valueNode, c); err != nil {
			return nil, err
		}
		file = raw.File
	}
	if file == "" {
		return nil, &ParseError{Path: p.sourcePath, Line: valueNode.Line, Message: "runScript requires a file"}
	}

	data, err := os.ReadFile(p.resolve(file)) //#nosec G304 -- script path comes from the flow file
	if err != nil {
		return nil, wrapParseError(p.sourcePath, valueNode.Line, err)
	}
	c.Script = string(data)
	c.SourceDescription = file
	c.BaseCommand = withType(c.BaseCommand, CmdRunScript)
	return c, nil
}

// subFlow compiles either a referenced flow file or inline commands.
// A file keeps its own config; inline commands have none.
func (p *parser) subFlow(file string, inline []yaml.Node, line int) ([]Command, *Config, error) {
	if file == "" {
		cmds, err := p.parseNodes(inline)
		return cmds, nil, err
	}

	path := p.resolve(file)
	key := absPath(path)
	if p.stack[key] {
		return nil, nil, &ParseError{
			Path:    p.sourcePath,
			Line:    line,
			Message: fmt.Sprintf("circular flow reference: %s", file),
		}
	}

	data, err := os.ReadFile(path) //#nosec G304 -- sub-flow path comes from the flow file
	if err != nil {
		return nil, nil, wrapParseError(p.sourcePath, line, err)
	}

	p.stack[key] = true
	defer delete(p.stack, key)

	child := &parser{sourcePath: path, appID: p.appID, stack: p.stack}
	sub, err := child.parse(data)
	if err != nil {
		return nil, nil, err
	}
	return sub.Commands, &sub.Config, nil
}

func withEnv(env map[string]string, cmds []Command) []Command {
	if len(env) == 0 {
		return cmds
	}
	def := &DefineVariablesCommand{
		BaseCommand: BaseCommand{CommandType: CmdDefineVariables},
		Env:         env,
	}
	return append([]Command{def}, cmds...)
}

func (p *parser) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(p.sourcePath), path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ShouldIncludeFlow reports whether a flow passes the tag filters: it must
// carry one of includeTags (when given) and none of excludeTags.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	tagged := func(tags []string) bool {
		return slices.ContainsFunc(flow.Config.Tags, func(t string) bool {
			return slices.Contains(tags, t)
		})
	}
	if len(includeTags) > 0 && !tagged(includeTags) {
		return false
	}
	return !tagged(excludeTags)
}
