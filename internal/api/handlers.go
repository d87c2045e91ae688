package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sway/internal/rig"
	"github.com/starford/sway/internal/swayservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *swayservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *swayservice.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListPresets handles GET /presets.
//
//	@Summary		List built-in and saved presets
//	@Tags			presets
//	@Produce		json
//	@Success		200	{object}	PresetListResponse
//	@Security		BearerAuth
//	@Router			/presets [get]
func (h *Handler) ListPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PresetListResponse{Presets: h.svc.Presets()})
}

// SavePreset handles PUT /presets/{name}.
//
//	@Summary		Save a named preset
//	@Tags			presets
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Preset name"
//	@Success		200		{object}	preset.Preset
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{name} [put]
func (h *Handler) SavePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var values map[string]any
	if !decodeBody(w, r, &values) {
		return
	}
	set, err := h.svc.SavePreset(name, values)
	if err != nil {
		writeError(w, "save preset", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "source": "file", "params": set})
}

// DeletePreset handles DELETE /presets/{name}.
//
//	@Summary		Delete a saved preset
//	@Tags			presets
//	@Param			name	path	string	true	"Preset name"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{name} [delete]
func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePreset(chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete preset", err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPins handles GET /layers/{layer}/pins.
//
//	@Summary		List the puppet pins of a layer with their bindings
//	@Tags			layers
//	@Produce		json
//	@Param			layer	path		string	true	"Layer name"
//	@Success		200		{object}	PinListResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layers/{layer}/pins [get]
func (h *Handler) ListPins(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	pins, err := h.svc.Pins(r.Context(), layer)
	if err != nil {
		writeError(w, "list pins", err, nil)
		return
	}
	out := PinListResponse{Layer: layer, Pins: make([]PinDTO, len(pins))}
	for i, p := range pins {
		out.Pins[i] = PinDTO{
			Name:       p.Name,
			Position:   vecOf(p.Position),
			Selected:   p.Selected,
			Control:    p.Control,
			ChainIndex: p.ChainIndex,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ImportScene handles PUT /scene.
//
//	@Summary		Import a YAML or JSON scene into the document
//	@Tags			scene
//	@Accept			plain
//	@Produce		json
//	@Success		200	{object}	SceneResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scene [put]
func (h *Handler) ImportScene(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	scene, err := h.svc.ImportScene(r.Context(), data)
	if err != nil {
		writeError(w, "import scene", err, nil)
		return
	}
	names := make([]string, len(scene.Layers))
	for i, l := range scene.Layers {
		names[i] = l.Name
	}
	writeJSON(w, http.StatusOK, SceneResponse{Layers: names})
}

// Apply handles POST /apply.
//
//	@Summary		Bind sway motion to a pin chain
//	@Tags			sway
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ApplyRequest	true	"Selection and parameters"
//	@Success		201		{object}	CommandResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		500		{object}	errResponse	"Partially applied"
//	@Security		BearerAuth
//	@Router			/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	root, err := rig.ParseRootPolicy(req.Root)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Apply(r.Context(), swayservice.ApplyRequest{
		Selection:   swayservice.Selection{Layer: req.Layer, Pins: req.Pins},
		Preset:      req.Preset,
		Params:      req.Params,
		Root:        root,
		Order:       req.Order,
		ControlName: req.ControlName,
	})
	if err != nil {
		var partial any
		if res.LinksApplied > 0 {
			partial = res
		}
		writeError(w, "apply", err, partial)
		return
	}
	writeJSON(w, http.StatusCreated, CommandResponse{Message: res.Message(), Result: res})
}

// Remove handles POST /remove.
//
//	@Summary		Detach sway motion from the selected pins
//	@Tags			sway
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectionRequest	true	"Selection"
//	@Success		200		{object}	CommandResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/remove [post]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Remove(r.Context(), req.selection())
	if err != nil {
		writeError(w, "remove", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Message: res.Message(), Result: res})
}

// Bake handles POST /bake.
//
//	@Summary		Bake the selected pins to keyframes
//	@Tags			sway
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectionRequest	true	"Selection"
//	@Success		200		{object}	CommandResponse
//	@Failure		422		{object}	errResponse
//	@Failure		500		{object}	errResponse	"Partially baked"
//	@Security		BearerAuth
//	@Router			/bake [post]
func (h *Handler) Bake(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Bake(r.Context(), req.selection())
	if err != nil {
		var partial any
		if len(res.Report.Baked) > 0 {
			partial = res
		}
		writeError(w, "bake", err, partial)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Message: res.Message(), Result: res})
}

// Evaluate handles GET /evaluate.
//
//	@Summary		Evaluate a pin at a time
//	@Tags			sway
//	@Produce		json
//	@Param			layer	query		string	true	"Layer name"
//	@Param			pin		query		string	true	"Pin name"
//	@Param			t		query		number	true	"Time in seconds"
//	@Success		200		{object}	EvaluateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/evaluate [get]
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	layer, pin := q.Get("layer"), q.Get("pin")
	if layer == "" || pin == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'layer' and 'pin' are required"))
		return
	}
	t, err := strconv.ParseFloat(q.Get("t"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 't' must be a number"))
		return
	}
	v, err := h.svc.Evaluate(r.Context(), layer, pin, t)
	if err != nil {
		writeError(w, "evaluate", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Layer: layer, Pin: pin, T: t, Value: vecOf(v)})
}

// Timeline handles GET /timeline.
//
//	@Summary		Get the document timeline
//	@Tags			scene
//	@Produce		json
//	@Success		200	{object}	TimelineResponse
//	@Security		BearerAuth
//	@Router			/timeline [get]
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.svc.Timeline(r.Context())
	if err != nil {
		writeError(w, "timeline", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}
