package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/shardbus/internal/transport"
)

// NewPublishCmd создаёт команду публикации сообщений.
//
// Без --json-body каждый аргумент публикуется как строка без изменений.
// С --json-body аргумент разбирается как JSON и кодируется выбранным
// encoder; --hash-field направляет сообщения с одинаковым значением
// поля в одну очередь.
func NewPublishCmd(configFn func() transport.Config, outputFn func() *Output) *cobra.Command {
	var encoding string
	var jsonBody bool
	var hashField string
	var routingKey string

	cmd := &cobra.Command{
		Use:   "publish MESSAGE...",
		Short: "Publish messages to a random node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			cfg := configFn()

			encoder, err := encoderByName(encoding)
			if err != nil {
				return err
			}
			cfg.Encoder = encoder

			if hashField != "" {
				if !jsonBody {
					return errors.New("--hash-field requires --json-body")
				}
				cfg.Routing = transport.HashRouting(fieldKey(hashField))
			}

			messages := make([]any, len(args))
			for i, arg := range args {
				if !jsonBody {
					messages[i] = arg
					continue
				}
				var v map[string]any
				if err := json.Unmarshal([]byte(arg), &v); err != nil {
					return fmt.Errorf("message %d is not a JSON object: %w", i, err)
				}
				messages[i] = v
			}

			sys, err := transport.New(cfg)
			if err != nil {
				return err
			}
			defer sys.Disconnect()

			pub, err := sys.Publisher(cmd.Context())
			if err != nil {
				return fmt.Errorf("attach to topology (run setup first): %w", err)
			}

			for i, msg := range messages {
				if routingKey != "" {
					err = pub.PublishTo(cmd.Context(), msg, routingKey)
				} else {
					err = pub.Publish(cmd.Context(), msg)
				}
				if err != nil {
					return fmt.Errorf("publish message %d: %w", i, err)
				}
			}

			out.Success(fmt.Sprintf("Published %d message(s)", len(messages)))
			return nil
		},
	}

	cmd.Flags().StringVar(&encoding, "encoder", "gob", "Encoder for JSON bodies (gob, json)")
	cmd.Flags().BoolVar(&jsonBody, "json-body", false, "Parse each MESSAGE as a JSON object")
	cmd.Flags().StringVar(&hashField, "hash-field", "", "Route by hash of this JSON field instead of randomly")
	cmd.Flags().StringVar(&routingKey, "routing-key", "", "Publish with this routing key instead of selecting one")

	return cmd
}

func encoderByName(name string) (transport.Encoder, error) {
	switch name {
	case "gob":
		return transport.GobEncoder{}, nil
	case "json":
		return transport.JSONEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q, expected gob or json", name)
	}
}

// fieldKey извлекает значение поля JSON-объекта для HashRouting.
func fieldKey(field string) func(msg any) string {
	return func(msg any) string {
		obj, ok := msg.(map[string]any)
		if !ok {
			return ""
		}
		return fmt.Sprint(obj[field])
	}
}
