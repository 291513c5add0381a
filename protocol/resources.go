package protocol

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	// Execution declares whether the resource may be read as a background task (MCP 2025-11-25)
	Execution *ToolExecution `json:"execution,omitempty"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

type ResourceContents struct {
	URI         string      `json:"uri"`
	Title       string      `json:"title,omitempty"`
	MimeType    string      `json:"mimeType,omitempty"`
	Text        string      `json:"text,omitempty"`
	Blob        string      `json:"blob,omitempty"`
	Annotations *Annotation `json:"annotations,omitempty"`
}

// ListResourcesParams parameter type for listing resources
type ListResourcesParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	Cursor string         `json:"cursor,omitempty"`
}

type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
	PaginatedResult
}

// ReadResourceParams parameter type for reading a resource
type ReadResourceParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	URI  string         `json:"uri"`
	// Task requests background reading of this resource (MCP 2025-11-25)
	Task *TaskMetadata `json:"task,omitempty"`
}

type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
	Meta     map[string]any     `json:"_meta,omitempty"`
}

// SubscribeParams resources/subscribe request parameters
type SubscribeParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	URI  string         `json:"uri"`
}

// UnsubscribeParams resources/unsubscribe request parameters
type UnsubscribeParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	URI  string         `json:"uri"`
}

type ResourceTemplate struct {
	URITemplate string         `json:"uriTemplate"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	MimeType    string         `json:"mimeType,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// ListResourceTemplatesParams parameter type for listing resource templates
type ListResourceTemplatesParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	Cursor string         `json:"cursor,omitempty"`
}

type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	PaginatedResult
}

func NewResource(uri, name, description, mimeType string) Resource {
	return Resource{
		URI:         uri,
		Name:        name,
		Description: description,
		MimeType:    mimeType,
	}
}

func NewTextResourceContents(uri, text string) ResourceContents {
	return ResourceContents{
		URI:      uri,
		MimeType: "text/plain",
		Text:     text,
	}
}

func NewBlobResourceContents(uri, blob, mimeType string) ResourceContents {
	return ResourceContents{
		URI:      uri,
		MimeType: mimeType,
		Blob:     blob,
	}
}

func NewReadResourceResult(contents ...ResourceContents) *ReadResourceResult {
	return &ReadResourceResult{
		Contents: contents,
	}
}

func NewResourceTemplate(uriTemplate, name, description, mimeType string) ResourceTemplate {
	return ResourceTemplate{
		URITemplate: uriTemplate,
		Name:        name,
		Description: description,
		MimeType:    mimeType,
	}
}
