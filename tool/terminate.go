package tool

import "context"

// TerminateName is the name of the built-in terminate tool.
const TerminateName = "terminate"

// NewTerminate returns the tool the model calls to end the run with a final
// message. The message becomes the run output.
func NewTerminate() *FunctionTool {
	return New(Config{
		Name: TerminateName,
		Description: "Terminates the session and prints the message to the user. " +
			"Call it once the task is complete.",
		Parameters: []Parameter{
			String("message", "Final message for the user"),
		},
		Terminal: true,
		Tags:     []string{"system"},
	}, func(_ context.Context, args Args) (any, error) {
		return args.String("message"), nil
	})
}
