package llmalign

import (
	"context"
	"fmt"

	"concord/internal/services"
	"concord/internal/services/llm"
)

// Completer is the chat surface the aligners call. Complete keeps the full
// message history so corrective turns can reference the previous reply.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) ([]string, error)
}

// clientCompleter adapts the llm.Client single-string API.
type clientCompleter struct {
	client *llm.Client
}

func (c clientCompleter) Complete(ctx context.Context, messages []llm.Message) ([]string, error) {
	content, err := c.client.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	return []string{content}, nil
}

// validator checks a decoded response and returns the corrective instruction
// to send back when the structure is wrong.
type validator func(content string) error

// completeValidated drives the corrective-retry conversation: send the
// prompt, and when the reply fails to decode or validate, append the reply
// and a correction describing the defect, then ask once more. After the
// corrective attempt fails the response is treated as a schema failure for
// the unit.
func completeValidated(ctx context.Context, completer Completer, system, user string, validate validator) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	const attempts = 2
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		replies, err := completer.Complete(ctx, messages)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "align.llm", "complete", "chat completion failed", err)
		}
		if len(replies) == 0 {
			return "", services.Wrap(services.ErrTransient, "align.llm", "complete", "no completion content", nil)
		}
		content := replies[0]

		if err := validate(content); err == nil {
			return content, nil
		} else {
			lastErr = err
			if attempt < attempts {
				messages = append(messages,
					llm.Message{Role: "assistant", Content: content},
					llm.Message{Role: "user", Content: correctionPrompt(err)},
				)
			}
		}
	}
	return "", services.Wrap(services.ErrSchema, "align.llm", "validate", "response invalid after corrective retry", lastErr)
}

func correctionPrompt(err error) string {
	return fmt.Sprintf(
		"Your previous response was invalid: %v. Reply again with only the corrected JSON object, using the exact schema from the first message.",
		err,
	)
}
