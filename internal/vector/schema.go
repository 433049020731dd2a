package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"

	"coursemind/internal/text"
)

// ClassName is the single Weaviate class holding every ingested chunk,
// video and PDF alike, so one search spans both source types.
const ClassName = "MaterialChunk"

// Chunk is an embeddable unit ready for the vector store.
type Chunk struct {
	Content       string
	SourceID      string
	SourceTitle   string
	SourceType    string
	SequenceIndex int
	Position      text.Position
	Vector        []float32
}

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks if the required class exists and creates it if not
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "sourceId",
			DataType: []string{"string"}, // exact match key
		},
		{
			Name:     "sourceTitle",
			DataType: []string{"text"},
		},
		{
			Name:     "sourceType",
			DataType: []string{"string"},
		},
		{
			Name:     "sequenceIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "timestampStart",
			DataType: []string{"string"},
		},
		{
			Name:     "timestampEnd",
			DataType: []string{"string"},
		},
		{
			Name:     "pageNumber",
			DataType: []string{"int"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A chunk of ingested course material",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
