package ai

import "context"

// TextGenerator is the opaque text-generation collaborator. The pipeline
// only ever sends a prompt and reads back text; provider selection and
// fallback behavior live entirely behind this interface.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
