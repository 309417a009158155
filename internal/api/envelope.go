package api

import (
	"log/slog"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/consistency"
	"github.com/listenupapp/catalog-server/internal/http/response"
)

// Written is the body of a mutation: the stored record and any secondary
// writes that did not complete. The envelope lifts Warnings to the top level.
type Written[T any] struct {
	Data     T                     `json:"data"`
	Warnings []consistency.Warning `json:"warnings,omitempty"`
}

func (w Written[T]) unwrap() (any, []consistency.Warning) {
	return w.Data, w.Warnings
}

type warned interface {
	unwrap() (any, []consistency.Warning)
}

// EnvelopeTransformer returns a huma transformer that wraps every response
// body in the response envelope. Errors are rendered as error envelopes.
func EnvelopeTransformer(logger *slog.Logger) huma.Transformer {
	return func(_ huma.Context, status string, v any) (any, error) {
		switch body := v.(type) {
		case *APIError:
			return body.envelope(), nil
		case error:
			code, _ := strconv.Atoi(status)
			return newAPIError(logger, code, body.Error(), body).envelope(), nil
		case warned:
			data, warnings := body.unwrap()
			return response.Success(data, warnings), nil
		default:
			return response.Success(v, nil), nil
		}
	}
}
