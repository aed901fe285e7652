package document

// MetadataProductName is the only metadata key a review document carries.
const MetadataProductName = "product_name"

// Document is a retrievable unit: the review text plus the product it belongs to.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func New(content, productName string) Document {
	return Document{
		Content:  content,
		Metadata: map[string]string{MetadataProductName: productName},
	}
}

func (d Document) ProductName() string {
	return d.Metadata[MetadataProductName]
}
