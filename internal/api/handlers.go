// Package api exposes the HTTP surface of the trail relocator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/reconciler"
	"example.com/trailsync/internal/registry"
	"example.com/trailsync/internal/repair"
)

// Relocator runs one reconciliation pass per edit notification.
type Relocator interface {
	HandleEdit(ctx context.Context, edit domain.EditNotification) (reconciler.Outcome, error)
}

// Repairer audits and repairs the cross-registry invariants.
type Repairer interface {
	RunOnce(ctx context.Context) (repair.Report, error)
}

// Handler coordinates HTTP requests with the registries and the reconciler.
type Handler struct {
	registries *registry.Set
	relocator  Relocator
	repairer   Repairer
}

// NewHandler builds a Handler.
func NewHandler(registries *registry.Set, relocator Relocator, repairer Repairer) *Handler {
	return &Handler{registries: registries, relocator: relocator, repairer: repairer}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/edits", h.edits)
	mux.HandleFunc("/v1/trails/", h.trailByID)
	mux.HandleFunc("/v1/registries/", h.registryByTier)
	mux.HandleFunc("/v1/repair", h.runRepair)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// edits ingests an edit notification and reconciles synchronously. It exists
// for bridges that deliver webhooks instead of Kafka messages.
func (h *Handler) edits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var edit domain.EditNotification
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := edit.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	outcome, err := h.relocator.HandleEdit(r.Context(), edit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, toOutcomeView(outcome))
}

func (h *Handler) trailByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/trails/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing trail id")
		return
	}

	tier, row, err := h.registries.Locate(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTrailNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "trail not placed in any registry")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toTrailView(tier, row))
}

func (h *Handler) registryByTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	slug := strings.TrimPrefix(r.URL.Path, "/v1/registries/")
	tier, err := domain.ParseTierSlug(slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown registry tier")
		return
	}

	store := h.registries.Category(tier)
	rows, err := store.List(r.Context())
	if err != nil {
		if errors.Is(err, registry.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "registry_unavailable", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]TrailView, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTrailView(tier, row))
	}

	writeJSON(w, http.StatusOK, RegistryView{
		Registry: store.Name(),
		Tier:     tier.String(),
		Items:    items,
	})
}

func (h *Handler) runRepair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	report, err := h.repairer.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RepairResponse{Report: report, Clean: report.Clean()})
}

// OutcomeView describes the result of a synchronous reconciliation.
type OutcomeView struct {
	TrailID  string `json:"trail_id,omitempty"`
	Action   string `json:"action"`
	FromTier string `json:"from_tier,omitempty"`
	ToTier   string `json:"to_tier,omitempty"`
	Appended bool   `json:"appended,omitempty"`
}

// TrailView exposes one registry row.
type TrailView struct {
	Tier            string `json:"tier"`
	Row             int64  `json:"row"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Lat             string `json:"lat"`
	Lon             string `json:"lon"`
	Difficulty      string `json:"difficulty"`
	Length          string `json:"length,omitempty"`
	Timing          string `json:"timing,omitempty"`
	Distance        string `json:"distance,omitempty"`
	WebsiteLink     string `json:"website_link,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// RegistryView packages one category registry listing.
type RegistryView struct {
	Registry string      `json:"registry"`
	Tier     string      `json:"tier"`
	Items    []TrailView `json:"items"`
}

// RepairResponse wraps a repair report.
type RepairResponse struct {
	Report repair.Report `json:"report"`
	Clean  bool          `json:"clean"`
}

func toOutcomeView(outcome reconciler.Outcome) OutcomeView {
	return OutcomeView{
		TrailID:  outcome.TrailID,
		Action:   outcome.Action,
		FromTier: outcome.FromTier,
		ToTier:   outcome.ToTier,
		Appended: outcome.Appended,
	}
}

func toTrailView(tier domain.Difficulty, row registry.Row) TrailView {
	return TrailView{
		Tier:            tier.String(),
		Row:             row.Num,
		ID:              row.Record.ID,
		Name:            row.Record.Name,
		Lat:             row.Record.Lat,
		Lon:             row.Record.Lon,
		Difficulty:      row.Record.Difficulty,
		Length:          row.Record.Length,
		Timing:          row.Record.Timing,
		Distance:        row.Record.Distance,
		WebsiteLink:     row.Record.WebsiteLink,
		MaxParticipants: row.Record.MaxParticipants,
		Notes:           row.Record.Notes,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
