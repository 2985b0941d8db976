package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
}

// Middleware returns a chi-compatible middleware that records audit entries.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			ctx, slot := common.WithPrincipalSlot(req.Context())
			req = req.WithContext(ctx)
			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			actor := r.actor(req, slot)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}

			var metadata []byte
			if cfg.MetadataFunc != nil {
				if payload := cfg.MetadataFunc(req, recorder.Status()); payload != nil {
					if data, err := json.Marshal(payload); err == nil {
						metadata = data
					}
				}
			}

			if err := r.Service.Record(req.Context(), actor, cfg.Action, cfg.ResourceType, resourceID, req, recorder.Status(), metadata); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func (r HTTPRecorder) actor(req *http.Request, slot *common.Principal) Actor {
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if p, ok := common.PrincipalFrom(req.Context()); ok {
		return Actor{AccountID: p.AccountID, Role: p.Role}
	}
	if slot != nil && slot.AccountID > 0 {
		return Actor{AccountID: slot.AccountID, Role: slot.Role}
	}
	return Actor{}
}
