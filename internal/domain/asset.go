package domain

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Asset represents a displayable artifact attached to a completed job.
type Asset struct {
	ID         string    `json:"id"`
	Kind       AssetKind `json:"type"`
	URL        string    `json:"url"`
	MIME       string    `json:"mime,omitempty"`
	StorageKey string    `json:"storage_key,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
	Prompt     string    `json:"prompt"`
}

// Citation is a source reference returned alongside generated content.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}
