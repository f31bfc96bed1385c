// pkg/registry/schema.go
package registry

// SchemaRegistry lists the JSON schemas of every document shape the feed
// reads or writes.
type SchemaRegistry struct {
	Version     string             `json:"version"`
	LastUpdated string             `json:"lastUpdated"`
	Schemas     []SchemaDefinition `json:"schemas"`
}

type SchemaDefinition struct {
	ID          string                 `json:"id"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description"`
	Collection  string                 `json:"collection"`
	Embedded    bool                   `json:"embedded"`
	Schema      map[string]interface{} `json:"schema"`
	Tags        []string               `json:"tags"`
}

// Schema ids.
const (
	SchemaRequest      = "request"
	SchemaResponse     = "response"
	SchemaDonorProfile = "donor-profile"
	SchemaUserProfile  = "user-profile"
)
