package gemini

// Request/response shapes for the generateContent endpoint. Only the fields
// this client uses are declared.

type generateContentRequest struct {
	SystemInstruction *content    `json:"system_instruction,omitempty"`
	Contents          []content   `json:"contents"`
	Tools             []tool      `json:"tools,omitempty"`
	ToolConfig        *toolConfig `json:"tool_config,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *schema `json:"parameters,omitempty"`
}

type schema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"function_calling_config"`
}

type functionCallingConfig struct {
	Mode string `json:"mode"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}
