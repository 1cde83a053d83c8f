package slack

// Message is a Block Kit message with a plain text fallback.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one Block Kit layout block. Only the block types the bot
// actually renders are modeled: section, divider, actions and input.
type Block struct {
	Type     string    `json:"type"`
	BlockID  string    `json:"block_id,omitempty"`
	Text     *Text     `json:"text,omitempty"`
	Fields   []Text    `json:"fields,omitempty"`
	Elements []Element `json:"elements,omitempty"`
	Element  *Element  `json:"element,omitempty"`
	Label    *Text     `json:"label,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Element is a Block Kit interactive element (button or plain text input).
type Element struct {
	Type        string `json:"type"`
	ActionID    string `json:"action_id,omitempty"`
	Text        *Text  `json:"text,omitempty"`
	Value       string `json:"value,omitempty"`
	Style       string `json:"style,omitempty"`
	URL         string `json:"url,omitempty"`
	Multiline   bool   `json:"multiline,omitempty"`
	Placeholder *Text  `json:"placeholder,omitempty"`
}

// View is a modal definition for views.open.
type View struct {
	Type            string  `json:"type"`
	CallbackID      string  `json:"callback_id,omitempty"`
	PrivateMetadata string  `json:"private_metadata,omitempty"`
	Title           *Text   `json:"title,omitempty"`
	Submit          *Text   `json:"submit,omitempty"`
	Close           *Text   `json:"close,omitempty"`
	Blocks          []Block `json:"blocks"`
}

// Markdown builds a mrkdwn text object.
func Markdown(text string) *Text {
	return &Text{Type: "mrkdwn", Text: text}
}

// Plain builds a plain_text object.
func Plain(text string) *Text {
	return &Text{Type: "plain_text", Text: text, Emoji: true}
}

// Section builds a section block with mrkdwn text.
func Section(text string) Block {
	return Block{Type: "section", Text: Markdown(text)}
}

// Divider builds a divider block.
func Divider() Block {
	return Block{Type: "divider"}
}
