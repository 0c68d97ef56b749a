package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================
// Navigation & Interaction
// ============================================

// TapOnElementCommand taps on an element. doubleTapOn and longPressOn
// compile into this command with Repeat or LongPress set.
type TapOnElementCommand struct {
	BaseCommand           `yaml:",inline"`
	Selector              Selector `yaml:"-"`
	LongPress             bool     `yaml:"longPress"`
	Repeat                int      `yaml:"repeat"`
	DelayMs               int      `yaml:"delay"`
	Point                 string   `yaml:"point"` // Point relative to the element: "x%, y%" or "x, y"
	RetryTapIfNoChange    *bool    `yaml:"retryTapIfNoChange"`
	WaitUntilVisible      *bool    `yaml:"waitUntilVisible"`
	WaitToSettleTimeoutMs int      `yaml:"waitToSettleTimeoutMs"`
}

// ElementSelector implements SelectorCommand.
func (c *TapOnElementCommand) ElementSelector() *Selector { return &c.Selector }

// Describe returns a human-readable description.
func (c *TapOnElementCommand) Describe() string {
	opt := ""
	if c.Optional || c.Selector.Optional {
		opt = "(Optional) "
	}
	point := ""
	if c.Point != "" {
		point = " at " + c.Point
	}
	return tapDescription(c.LongPress, c.Repeat) + " on " + opt + c.Selector.Description() + point
}

// Evaluate implements Command.
func (c *TapOnElementCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Selector = *c.Selector.Evaluate(e)
	out.Point = e.String(c.Point)
	return &out
}

// TapOnPointCommand taps on screen coordinates: "x, y" or "x%, y%".
type TapOnPointCommand struct {
	BaseCommand           `yaml:",inline"`
	Point                 string `yaml:"point"`
	LongPress             bool   `yaml:"longPress"`
	Repeat                int    `yaml:"repeat"`
	DelayMs               int    `yaml:"delay"`
	RetryTapIfNoChange    *bool  `yaml:"retryTapIfNoChange"`
	WaitToSettleTimeoutMs int    `yaml:"waitToSettleTimeoutMs"`
}

// Describe returns a human-readable description.
func (c *TapOnPointCommand) Describe() string {
	return tapDescription(c.LongPress, c.Repeat) + " on point (" + c.Point + ")"
}

// Evaluate implements Command.
func (c *TapOnPointCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Point = e.String(c.Point)
	return &out
}

func tapDescription(longPress bool, repeat int) string {
	switch {
	case longPress:
		return "Long press"
	case repeat == 2:
		return "Double tap"
	case repeat > 2:
		return fmt.Sprintf("Tap x%d", repeat)
	default:
		return "Tap"
	}
}

// DefaultSwipeDurationMs is used when a swipe has no duration.
const DefaultSwipeDurationMs = 400

// SwipeCommand performs a swipe gesture.
type SwipeCommand struct {
	BaseCommand           `yaml:",inline"`
	Direction             string    `yaml:"direction"` // UP, DOWN, LEFT, RIGHT
	From                  *Selector `yaml:"from"`      // Element to swipe on
	Start                 string    `yaml:"start"`     // "x, y" or "x%, y%"
	End                   string    `yaml:"end"`
	Duration              int       `yaml:"duration"` // ms
	WaitToSettleTimeoutMs int       `yaml:"waitToSettleTimeoutMs"`
}

// ElementSelector implements SelectorCommand.
func (c *SwipeCommand) ElementSelector() *Selector { return c.From }

// DurationMs returns the swipe duration, defaulting to 400ms.
func (c *SwipeCommand) DurationMs() int {
	if c.Duration <= 0 {
		return DefaultSwipeDurationMs
	}
	return c.Duration
}

// Describe returns a human-readable description.
func (c *SwipeCommand) Describe() string {
	switch {
	case c.From != nil && c.Direction != "":
		return fmt.Sprintf("Swiping in %s direction on %s", c.Direction, c.From.Description())
	case c.Direction != "":
		return fmt.Sprintf("Swiping in %s direction in %d ms", c.Direction, c.DurationMs())
	case c.Start != "" && c.End != "":
		return fmt.Sprintf("Swipe from (%s) to (%s) in %d ms", c.Start, c.End, c.DurationMs())
	default:
		return "Invalid input to swipe command"
	}
}

// Evaluate implements Command.
func (c *SwipeCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.From = c.From.Evaluate(e)
	out.Direction = e.String(c.Direction)
	out.Start = e.String(c.Start)
	out.End = e.String(c.End)
	return &out
}

// ScrollCommand scrolls the screen vertically.
type ScrollCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *ScrollCommand) Describe() string { return "Scroll vertically" }

// Evaluate implements Command.
func (c *ScrollCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// scrollUntilVisible defaults.
const (
	DefaultScrollTimeoutMs      = "20000"
	DefaultScrollSpeed          = "40"
	DefaultVisibilityPercentage = 100
)

// ScrollUntilVisibleCommand scrolls until an element is visible.
type ScrollUntilVisibleCommand struct {
	BaseCommand           `yaml:",inline"`
	Selector              Selector `yaml:"element"`
	Direction             string   `yaml:"direction"`
	Timeout               string   `yaml:"timeout"` // ms, string for variable support
	Speed                 string   `yaml:"speed"`   // 0-100
	VisibilityPercentage  *int     `yaml:"visibilityPercentage"`
	CenterElement         bool     `yaml:"centerElement"`
	WaitToSettleTimeoutMs *int     `yaml:"waitToSettleTimeoutMs"`
}

// ElementSelector implements SelectorCommand.
func (c *ScrollUntilVisibleCommand) ElementSelector() *Selector { return &c.Selector }

// ScrollDirection returns the direction, DOWN by default.
func (c *ScrollUntilVisibleCommand) ScrollDirection() string {
	if c.Direction == "" {
		return "DOWN"
	}
	return strings.ToUpper(c.Direction)
}

// TimeoutMs returns the timeout; negative or invalid values use the default.
func (c *ScrollUntilVisibleCommand) TimeoutMs() int64 {
	def, _ := strconv.ParseInt(DefaultScrollTimeoutMs, 10, 64)
	if c.Timeout == "" {
		return def
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.Timeout), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// SpeedValue returns the configured speed string, "40" by default.
func (c *ScrollUntilVisibleCommand) SpeedValue() string {
	if c.Speed == "" {
		return DefaultScrollSpeed
	}
	return c.Speed
}

// ScrollDurationMs maps speed 0..100 to a swipe duration: 100 is fastest.
func (c *ScrollUntilVisibleCommand) ScrollDurationMs() int64 {
	def, _ := strconv.ParseInt(DefaultScrollSpeed, 10, 64)
	speed, err := strconv.ParseInt(strings.TrimSpace(c.SpeedValue()), 10, 64)
	if err != nil {
		speed = def
	}
	d := int64(float64(1000*(100-speed))/100) + 1
	if d < 0 {
		return def
	}
	return d
}

// Visibility returns the visibility percentage, 100 by default.
func (c *ScrollUntilVisibleCommand) Visibility() int {
	if c.VisibilityPercentage == nil {
		return DefaultVisibilityPercentage
	}
	return *c.VisibilityPercentage
}

// VisibilityNormalized returns Visibility as a 0..1 fraction.
func (c *ScrollUntilVisibleCommand) VisibilityNormalized() float64 {
	return float64(c.Visibility()) / 100
}

// Describe returns a human-readable description.
func (c *ScrollUntilVisibleCommand) Describe() string {
	extra := []string{
		"with speed " + c.SpeedValue(),
		fmt.Sprintf("visibility percentage %d%%", c.Visibility()),
		fmt.Sprintf("timeout %d ms", c.TimeoutMs()),
	}
	if c.WaitToSettleTimeoutMs != nil {
		extra = append(extra, fmt.Sprintf("wait to settle %d ms", *c.WaitToSettleTimeoutMs))
	}
	if c.CenterElement {
		extra = append(extra, "with centering enabled")
	} else {
		extra = append(extra, "with centering disabled")
	}
	return fmt.Sprintf("Scrolling %s until %s is visible %s", c.ScrollDirection(), c.Selector.Description(), strings.Join(extra, ", "))
}

// Evaluate implements Command.
func (c *ScrollUntilVisibleCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Selector = *c.Selector.Evaluate(e)
	out.Direction = e.String(c.Direction)
	out.Timeout = e.String(c.Timeout)
	out.Speed = e.String(c.Speed)
	return &out
}

// BackPressCommand presses back.
type BackPressCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *BackPressCommand) Describe() string { return "Press back" }

// Evaluate implements Command.
func (c *BackPressCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// HideKeyboardCommand hides the keyboard.
type HideKeyboardCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *HideKeyboardCommand) Describe() string { return "Hide Keyboard" }

// Evaluate implements Command.
func (c *HideKeyboardCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// ============================================
// Text
// ============================================

// InputTextCommand inputs text.
type InputTextCommand struct {
	BaseCommand `yaml:",inline"`
	Text        string `yaml:"text"`
}

// Describe returns a human-readable description.
func (c *InputTextCommand) Describe() string { return "Input text " + c.Text }

// Evaluate implements Command.
func (c *InputTextCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Text = e.String(c.Text)
	return &out
}

// InputRandomCommand generates random input.
type InputRandomCommand struct {
	BaseCommand `yaml:",inline"`
	DataType    string `yaml:"type"` // TEXT, NUMBER, EMAIL, PERSON_NAME
	Length      int    `yaml:"length"`
}

// Describe returns a human-readable description.
func (c *InputRandomCommand) Describe() string { return "Input text random " + c.DataType }

// Evaluate returns the command unchanged.
func (c *InputRandomCommand) Evaluate(*Evaluator) Command { return c }

// DefaultEraseCharacters is used when eraseText has no count.
const DefaultEraseCharacters = 50

// EraseTextCommand erases text.
type EraseTextCommand struct {
	BaseCommand `yaml:",inline"`
	Characters  *int `yaml:"charactersToErase"`
}

// Count returns the number of characters to erase.
func (c *EraseTextCommand) Count() int {
	if c.Characters == nil {
		return DefaultEraseCharacters
	}
	return *c.Characters
}

// Describe returns a human-readable description.
func (c *EraseTextCommand) Describe() string {
	if c.Characters == nil {
		return "Erase text"
	}
	return fmt.Sprintf("Erase %d characters", *c.Characters)
}

// Evaluate returns the command unchanged.
func (c *EraseTextCommand) Evaluate(*Evaluator) Command { return c }

// CopyTextFromCommand copies text from an element.
type CopyTextFromCommand struct {
	BaseCommand `yaml:",inline"`
	Selector    Selector `yaml:"-"`
}

// ElementSelector implements SelectorCommand.
func (c *CopyTextFromCommand) ElementSelector() *Selector { return &c.Selector }

// Describe returns a human-readable description.
func (c *CopyTextFromCommand) Describe() string {
	return "Copy text from element with " + c.Selector.Description()
}

// Evaluate implements Command.
func (c *CopyTextFromCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Selector = *c.Selector.Evaluate(e)
	return &out
}

// PasteTextCommand pastes the copied text.
type PasteTextCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *PasteTextCommand) Describe() string { return "Paste text" }

// Evaluate returns the command unchanged.
func (c *PasteTextCommand) Evaluate(*Evaluator) Command { return c }

// SetClipboardCommand sets the copied-text register.
type SetClipboardCommand struct {
	BaseCommand `yaml:",inline"`
	Text        string `yaml:"text"`
}

// Describe returns a human-readable description.
func (c *SetClipboardCommand) Describe() string { return "Set Maestro clipboard to " + c.Text }

// Evaluate implements Command.
func (c *SetClipboardCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Text = e.String(c.Text)
	return &out
}

// ============================================
// Assertions
// ============================================

// AssertConditionCommand asserts a condition. assertVisible,
// assertNotVisible, assertTrue, assertEqual, assertNotEqual and
// extendedWaitUntil all compile into it.
type AssertConditionCommand struct {
	BaseCommand `yaml:",inline"`
	Condition   Condition `yaml:"-"`
	Timeout     string    `yaml:"timeout"` // ms, empty means the lookup default
}

// ElementSelector implements SelectorCommand.
func (c *AssertConditionCommand) ElementSelector() *Selector {
	if c.Condition.Visible != nil {
		return c.Condition.Visible
	}
	return c.Condition.NotVisible
}

// TimeoutMs parses Timeout; ok is false when it is unset or invalid.
func (c *AssertConditionCommand) TimeoutMs() (int64, bool) {
	if c.Timeout == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Timeout), 64)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}

// Describe returns a human-readable description.
func (c *AssertConditionCommand) Describe() string {
	opt := ""
	if c.Optional || c.Condition.HasOptionalSelector() {
		opt = "(Optional) "
	}
	return "Assert that " + opt + c.Condition.Description()
}

// Evaluate implements Command.
func (c *AssertConditionCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Condition = *c.Condition.Evaluate(e)
	out.Timeout = e.String(c.Timeout)
	return &out
}

// AssertNoDefectsWithAICommand asks the AI backend for visual defects.
type AssertNoDefectsWithAICommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *AssertNoDefectsWithAICommand) Describe() string { return "Assert no defects with AI" }

// Evaluate implements Command.
func (c *AssertNoDefectsWithAICommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// AssertWithAICommand asks the AI backend to verify a statement.
type AssertWithAICommand struct {
	BaseCommand `yaml:",inline"`
	Assertion   string `yaml:"assertion"`
}

// Describe returns a human-readable description.
func (c *AssertWithAICommand) Describe() string { return "Assert with AI: " + c.Assertion }

// Evaluate implements Command.
func (c *AssertWithAICommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Assertion = e.String(c.Assertion)
	return &out
}

// DefaultAIOutputVariable receives extractTextWithAI results by default.
const DefaultAIOutputVariable = "aiOutput"

// ExtractTextWithAICommand extracts text from the screen into a variable.
type ExtractTextWithAICommand struct {
	BaseCommand    `yaml:",inline"`
	Query          string `yaml:"query"`
	OutputVariable string `yaml:"outputVariable"`
}

// Describe returns a human-readable description.
func (c *ExtractTextWithAICommand) Describe() string { return "Extract text with AI: " + c.Query }

// Evaluate implements Command.
func (c *ExtractTextWithAICommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Query = e.String(c.Query)
	return &out
}

// ============================================
// App Management
// ============================================

// LaunchAppCommand launches an app.
type LaunchAppCommand struct {
	BaseCommand   `yaml:",inline"`
	AppID         string                 `yaml:"appId"`
	ClearState    bool                   `yaml:"clearState"`
	ClearKeychain bool                   `yaml:"clearKeychain"`
	StopApp       *bool                  `yaml:"stopApp"`
	Permissions   map[string]string      `yaml:"permissions"`
	Arguments     map[string]interface{} `yaml:"arguments"`
}

// Describe returns a human-readable description.
func (c *LaunchAppCommand) Describe() string {
	var b strings.Builder
	b.WriteString(`Launch app "` + c.AppID + `"`)
	if c.ClearState {
		b.WriteString(" with clear state")
	}
	if c.ClearKeychain {
		b.WriteString(" and clear keychain")
	}
	if c.StopApp != nil && !*c.StopApp {
		b.WriteString(" without stopping app")
	}
	return b.String()
}

// Evaluate implements Command.
func (c *LaunchAppCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.AppID = e.String(c.AppID)
	out.Permissions = e.Map(c.Permissions)
	return &out
}

// StopAppCommand stops an app.
type StopAppCommand struct {
	BaseCommand `yaml:",inline"`
	AppID       string `yaml:"appId"`
}

// Describe returns a human-readable description.
func (c *StopAppCommand) Describe() string { return "Stop " + c.AppID }

// Evaluate implements Command.
func (c *StopAppCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.AppID = e.String(c.AppID)
	return &out
}

// KillAppCommand kills an app.
type KillAppCommand struct {
	BaseCommand `yaml:",inline"`
	AppID       string `yaml:"appId"`
}

// Describe returns a human-readable description.
func (c *KillAppCommand) Describe() string { return "Kill " + c.AppID }

// Evaluate implements Command.
func (c *KillAppCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.AppID = e.String(c.AppID)
	return &out
}

// ClearStateCommand clears app state.
type ClearStateCommand struct {
	BaseCommand `yaml:",inline"`
	AppID       string `yaml:"appId"`
}

// Describe returns a human-readable description.
func (c *ClearStateCommand) Describe() string { return "Clear state of " + c.AppID }

// Evaluate implements Command.
func (c *ClearStateCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.AppID = e.String(c.AppID)
	return &out
}

// ClearKeychainCommand clears the keychain.
type ClearKeychainCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *ClearKeychainCommand) Describe() string { return "Clear keychain" }

// Evaluate returns the command unchanged.
func (c *ClearKeychainCommand) Evaluate(*Evaluator) Command { return c }

// SetPermissionsCommand sets app permissions.
// Values: "allow", "deny", "unset". The key "all" applies to every permission.
type SetPermissionsCommand struct {
	BaseCommand `yaml:",inline"`
	AppID       string            `yaml:"appId"`
	Permissions map[string]string `yaml:"permissions"`
}

// Describe returns a human-readable description.
func (c *SetPermissionsCommand) Describe() string { return "Set permissions" }

// Evaluate implements Command.
func (c *SetPermissionsCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.AppID = e.String(c.AppID)
	out.Permissions = e.Map(c.Permissions)
	return &out
}

// ============================================
// Device Control
// ============================================

// SetLocationCommand sets the device location.
type SetLocationCommand struct {
	BaseCommand `yaml:",inline"`
	Latitude    string `yaml:"latitude"`
	Longitude   string `yaml:"longitude"`
}

// Describe returns a human-readable description.
func (c *SetLocationCommand) Describe() string {
	return "Set location (" + c.Latitude + ", " + c.Longitude + ")"
}

// Evaluate implements Command.
func (c *SetLocationCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Latitude = e.String(c.Latitude)
	out.Longitude = e.String(c.Longitude)
	return &out
}

// SetOrientationCommand sets the device orientation.
type SetOrientationCommand struct {
	BaseCommand `yaml:",inline"`
	Orientation string `yaml:"orientation"` // PORTRAIT, LANDSCAPE_LEFT, ...
}

// Describe returns a human-readable description.
func (c *SetOrientationCommand) Describe() string { return "Set orientation " + c.Orientation }

// Evaluate implements Command.
func (c *SetOrientationCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Orientation = e.String(c.Orientation)
	return &out
}

// SetAirplaneModeCommand sets airplane mode.
type SetAirplaneModeCommand struct {
	BaseCommand `yaml:",inline"`
	Enabled     bool `yaml:"enabled"`
}

// Describe returns a human-readable description.
func (c *SetAirplaneModeCommand) Describe() string {
	if c.Enabled {
		return "Enable airplane mode"
	}
	return "Disable airplane mode"
}

// Evaluate implements Command.
func (c *SetAirplaneModeCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// ToggleAirplaneModeCommand toggles airplane mode.
type ToggleAirplaneModeCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *ToggleAirplaneModeCommand) Describe() string { return "Toggle airplane mode" }

// Evaluate implements Command.
func (c *ToggleAirplaneModeCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// DefaultTravelSpeedMps is the travel speed when none is given.
const DefaultTravelSpeedMps = 4.0

// TravelCommand moves the device location along a path.
type TravelCommand struct {
	BaseCommand `yaml:",inline"`
	Points      []string `yaml:"points"` // "lat, lon"
	Speed       float64  `yaml:"speed"`  // meters per second
}

// Describe returns a human-readable description.
func (c *TravelCommand) Describe() string {
	parts := make([]string, len(c.Points))
	for i, p := range c.Points {
		parts[i] = "(" + p + ")"
	}
	return "Travel path " + strings.Join(parts, ", ")
}

// Evaluate implements Command.
func (c *TravelCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Points = e.Strings(c.Points)
	return &out
}

// OpenLinkCommand opens a URL.
type OpenLinkCommand struct {
	BaseCommand `yaml:",inline"`
	Link        string `yaml:"link"`
	AutoVerify  *bool  `yaml:"autoVerify"`
	Browser     *bool  `yaml:"browser"`
}

// Describe returns a human-readable description.
func (c *OpenLinkCommand) Describe() string {
	auto := c.AutoVerify != nil && *c.AutoVerify
	browser := c.Browser != nil && *c.Browser
	switch {
	case browser && auto:
		return "Open " + c.Link + " with auto verification in browser"
	case browser:
		return "Open " + c.Link + " in browser"
	case auto:
		return "Open " + c.Link + " with auto verification"
	default:
		return "Open " + c.Link
	}
}

// Evaluate implements Command.
func (c *OpenLinkCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Link = e.String(c.Link)
	return &out
}

// ============================================
// Flow Control
// ============================================

// RepeatCommand repeats its body while a condition holds, up to Times.
type RepeatCommand struct {
	BaseCommand `yaml:",inline"`
	Times       string     `yaml:"times"` // String for variable support
	Condition   *Condition `yaml:"while"`
	Commands    []Command  `yaml:"-"`
}

// SubCommands implements Composite.
func (c *RepeatCommand) SubCommands() []Command { return c.Commands }

// SubConfig implements Composite.
func (c *RepeatCommand) SubConfig() *Config { return nil }

// Describe returns a human-readable description.
func (c *RepeatCommand) Describe() string {
	switch {
	case c.Times != "" && c.Condition != nil:
		return "Repeat while " + c.Condition.Description() + " (up to " + c.Times + " times)"
	case c.Condition != nil:
		return "Repeat while " + c.Condition.Description()
	case c.Times != "":
		return "Repeat " + c.Times + " times"
	default:
		return "Repeat indefinitely"
	}
}

// Evaluate substitutes Times only. The condition is evaluated per
// iteration by the executor.
func (c *RepeatCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Times = e.String(c.Times)
	return &out
}

// RetryCommand re-runs its body on failure.
type RetryCommand struct {
	BaseCommand       `yaml:",inline"`
	MaxRetries        string    `yaml:"maxRetries"` // String for variable support
	Commands          []Command `yaml:"-"`
	Config            *Config   `yaml:"-"`
	SourceDescription string    `yaml:"-"`
}

// SubCommands implements Composite.
func (c *RetryCommand) SubCommands() []Command { return c.Commands }

// SubConfig implements Composite.
func (c *RetryCommand) SubConfig() *Config { return c.Config }

// Describe returns a human-readable description.
func (c *RetryCommand) Describe() string {
	n := c.MaxRetries
	if _, err := strconv.Atoi(n); err != nil {
		n = "1"
	}
	if c.SourceDescription != "" {
		return "Retry " + c.SourceDescription + " " + n + " times"
	}
	return "Retry " + n + " times"
}

// Evaluate implements Command.
func (c *RetryCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.MaxRetries = e.String(c.MaxRetries)
	return &out
}

// RunFlowCommand runs a sub-flow, optionally guarded by a condition.
type RunFlowCommand struct {
	BaseCommand       `yaml:",inline"`
	Commands          []Command  `yaml:"-"`
	Condition         *Condition `yaml:"when"`
	SourceDescription string     `yaml:"-"`
	Config            *Config    `yaml:"-"`
}

// SubCommands implements Composite.
func (c *RunFlowCommand) SubCommands() []Command { return c.Commands }

// SubConfig implements Composite.
func (c *RunFlowCommand) SubConfig() *Config { return c.Config }

// Describe returns a human-readable description.
func (c *RunFlowCommand) Describe() string {
	d := "Run flow"
	if c.SourceDescription != "" {
		d = "Run " + c.SourceDescription
	}
	if c.Condition != nil {
		d += " when " + c.Condition.Description()
	}
	return d
}

// Evaluate implements Command.
func (c *RunFlowCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Condition = c.Condition.Evaluate(e)
	out.Config = c.Config.Evaluate(e)
	return &out
}

// RunScriptCommand runs a JavaScript file in a sub-scope.
type RunScriptCommand struct {
	BaseCommand       `yaml:",inline"`
	Script            string            `yaml:"-"` // Script content
	Env               map[string]string `yaml:"env"`
	SourceDescription string            `yaml:"-"` // Script path
	Condition         *Condition        `yaml:"when"`
}

// Describe returns a human-readable description.
func (c *RunScriptCommand) Describe() string {
	d := "Run " + c.SourceDescription
	if c.Condition != nil {
		d += " when " + c.Condition.Description()
	}
	return d
}

// Evaluate implements Command.
func (c *RunScriptCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Env = e.Map(c.Env)
	out.Condition = c.Condition.Evaluate(e)
	return &out
}

// EvalScriptCommand evaluates inline JavaScript.
type EvalScriptCommand struct {
	BaseCommand `yaml:",inline"`
	Script      string `yaml:"script"`
}

// Describe returns a human-readable description.
func (c *EvalScriptCommand) Describe() string { return "Run " + c.Script }

// Evaluate returns the command unchanged: the script is evaluated as a whole.
func (c *EvalScriptCommand) Evaluate(*Evaluator) Command { return c }

// DefineVariablesCommand puts variables into the current env scope.
type DefineVariablesCommand struct {
	BaseCommand `yaml:",inline"`
	Env         map[string]string `yaml:"env"`
}

// Describe returns a human-readable description.
func (c *DefineVariablesCommand) Describe() string { return "Define variables" }

// Evaluate implements Command.
func (c *DefineVariablesCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Env = e.Map(c.Env)
	return &out
}

// ApplyConfigurationCommand carries the flow config inside the command list.
type ApplyConfigurationCommand struct {
	BaseCommand `yaml:",inline"`
	Config      *Config `yaml:"-"`
}

// Describe returns a human-readable description.
func (c *ApplyConfigurationCommand) Describe() string { return "Apply configuration" }

// Evaluate implements Command.
func (c *ApplyConfigurationCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Config = c.Config.Evaluate(e)
	return &out
}

// ============================================
// Media
// ============================================

// TakeScreenshotCommand saves a screenshot to <Path>.png.
type TakeScreenshotCommand struct {
	BaseCommand `yaml:",inline"`
	Path        string `yaml:"path"`
}

// Describe returns a human-readable description.
func (c *TakeScreenshotCommand) Describe() string { return "Take screenshot " + c.Path }

// Evaluate implements Command.
func (c *TakeScreenshotCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Path = e.String(c.Path)
	return &out
}

// StartRecordingCommand starts a screen recording to <Path>.mp4.
type StartRecordingCommand struct {
	BaseCommand `yaml:",inline"`
	Path        string `yaml:"path"`
}

// Describe returns a human-readable description.
func (c *StartRecordingCommand) Describe() string { return "Start recording " + c.Path }

// Evaluate implements Command.
func (c *StartRecordingCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Path = e.String(c.Path)
	return &out
}

// StopRecordingCommand stops the current screen recording.
type StopRecordingCommand struct {
	BaseCommand `yaml:",inline"`
}

// Describe returns a human-readable description.
func (c *StopRecordingCommand) Describe() string { return "Stop recording" }

// Evaluate implements Command.
func (c *StopRecordingCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	return &out
}

// AddMediaCommand pushes media files to the device.
type AddMediaCommand struct {
	BaseCommand `yaml:",inline"`
	Files       []string `yaml:"files"`
}

// Describe returns a human-readable description.
func (c *AddMediaCommand) Describe() string {
	return fmt.Sprintf("Adding media files(%d) to the device", len(c.Files))
}

// Evaluate implements Command.
func (c *AddMediaCommand) Evaluate(e *Evaluator) Command {
	out := *c
	out.BaseCommand = c.evaluated(e)
	out.Files = e.Strings(c.Files)
	return &out
}

// ============================================
// Other
// ============================================

// PressKeyCommand presses a key.
type PressKeyCommand struct {
	BaseCommand `yaml:",inline"`
	Key         string `yaml:"key"`
}

// Describe returns a human-readable description.
func (c *PressKeyCommand) Describe() string { return "Press " + c.Key + " key" }

// Evaluate returns the command unchanged.
func (c *PressKeyCommand) Evaluate(*Evaluator) Command { return c }

// WaitForAnimationToEndCommand waits for animations to settle.
type WaitForAnimationToEndCommand struct {
	BaseCommand `yaml:",inline"`
	Timeout     *int `yaml:"timeout"` // ms
}

// Describe returns a human-readable description.
func (c *WaitForAnimationToEndCommand) Describe() string { return "Wait for animation to end" }

// Evaluate returns the command unchanged.
func (c *WaitForAnimationToEndCommand) Evaluate(*Evaluator) Command { return c }
