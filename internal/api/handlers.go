package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gostac "github.com/planetlabs/go-stac"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robert-malhotra/stac-federator/internal/assets"
	"github.com/robert-malhotra/stac-federator/internal/cache"
	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/internal/jobs"
	"github.com/robert-malhotra/stac-federator/internal/metrics"
	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// Response headers set by the handlers.
const (
	CacheHeader = "X-Cache"

	searchCacheControl = "public, max-age=300, s-maxage=600"
	sceneCacheControl  = "public, max-age=3600, s-maxage=7200"
	assetsCacheControl = "private, max-age=300"
)

// Searcher returns encoded search responses along with the cache tier that
// served them. cache.CachedSearcher implements it.
type Searcher interface {
	Search(ctx context.Context, params *stac.SearchParams) ([]byte, cache.Source, error)
}

// Handlers contains all HTTP handlers for the federator API.
type Handlers struct {
	cfg         *config.Config
	registry    *provider.Registry
	searcher    Searcher
	resolver    *assets.Resolver
	queue       jobs.Queue
	collections *config.CollectionRegistry
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(
	cfg *config.Config,
	registry *provider.Registry,
	searcher Searcher,
	resolver *assets.Resolver,
	collections *config.CollectionRegistry,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:         cfg,
		registry:    registry,
		searcher:    searcher,
		resolver:    resolver,
		collections: collections,
		logger:      logger,
	}
}

// WithJobQueue enables the /process endpoints.
func (h *Handlers) WithJobQueue(q jobs.Queue) *Handlers {
	h.queue = q
	return h
}

// WithMetrics records HTTP metrics on m and exposes g on the metrics path.
func (h *Handlers) WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) *Handlers {
	h.metrics = m
	h.gatherer = g
	return h
}

// Health reports liveness.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": len(h.registry.All()),
	})
}

// LandingPage returns the root catalog.
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.STAC.BaseURL

	landing := &stac.LandingPage{
		Type:        "Catalog",
		Id:          "stac-federator",
		Title:       h.cfg.STAC.Title,
		Description: h.cfg.STAC.Description,
		StacVersion: h.cfg.STAC.Version,
		ConformsTo:  stac.DefaultConformance(),
		Links:       []*gostac.Link{},
	}

	landing.AddLink("self", baseURL+"/", "application/json")
	landing.AddLink("root", baseURL+"/", "application/json")
	landing.AddLink("conformance", baseURL+"/conformance", "application/json")
	landing.AddLink("data", baseURL+"/collections", "application/json")
	landing.Links = append(landing.Links, &gostac.Link{
		Rel:    "search",
		Href:   baseURL + "/search",
		Type:   "application/geo+json",
		Method: "GET",
	})
	landing.Links = append(landing.Links, &gostac.Link{
		Rel:    "search",
		Href:   baseURL + "/search",
		Type:   "application/geo+json",
		Method: "POST",
	})
	landing.AddLink("providers", baseURL+"/providers", "application/json")

	WriteJSON(w, http.StatusOK, landing)
}

// Conformance returns the conformance classes supported by this API.
// GET /conformance
func (h *Handlers) Conformance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{
		"conformsTo": stac.DefaultConformance(),
	})
}

// Providers lists the registered upstream providers.
// GET /providers
func (h *Handlers) Providers(w http.ResponseWriter, r *http.Request) {
	adapters := h.registry.All()
	descriptors := make([]provider.Descriptor, 0, len(adapters))
	for _, a := range adapters {
		descriptors = append(descriptors, a.Descriptor())
	}

	WriteJSON(w, http.StatusOK, map[string]any{"providers": descriptors})
}

// Collections returns the list of all available collections.
// GET /collections
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.STAC.BaseURL
	served := h.registry.Collections()

	collectionConfigs := h.collections.All()
	collections := make([]*gostac.Collection, 0, len(collectionConfigs))
	for _, cfg := range collectionConfigs {
		collections = append(collections, h.buildSTACCollection(cfg, served[cfg.ID], baseURL))
	}

	response := &stac.CollectionsList{
		Collections: collections,
		Links: []*gostac.Link{
			{Rel: "self", Href: baseURL + "/collections", Type: "application/json"},
			{Rel: "root", Href: baseURL + "/", Type: "application/json"},
		},
	}

	WriteJSON(w, http.StatusOK, response)
}

// Collection returns a single collection by ID.
// GET /collections/{collectionId}
func (h *Handlers) Collection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")

	collectionConfig := h.collections.Get(collectionID)
	if collectionConfig == nil {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return
	}

	served := h.registry.Collections()
	WriteJSON(w, http.StatusOK, h.buildSTACCollection(collectionConfig, served[collectionID], h.cfg.STAC.BaseURL))
}

// Search runs a federated search.
// GET/POST /search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var (
		params *stac.SearchParams
		err    error
	)
	if r.Method == http.MethodPost {
		params, err = h.parseSearchBody(r)
	} else {
		params, err = stac.ParseSearchParams(r.URL.Query(), h.cfg.Search.DefaultLimit, h.cfg.Search.MaxLimit)
	}
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	body, source, err := h.searcher.Search(r.Context(), params)
	if err != nil {
		if errors.Is(err, stac.ErrValidation) {
			WriteInvalidParameter(w, err.Error())
			return
		}
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("client went away during search",
				slog.String("request_id", GetRequestID(r.Context())),
			)
			return
		}
		h.logger.Error("federated search failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "search failed")
		return
	}

	w.Header().Set(CacheHeader, string(source))
	w.Header().Set("Cache-Control", searchCacheControl)
	WriteRawGeoJSON(w, http.StatusOK, body)
}

// parseSearchBody decodes a POST /search body with the same defaults and
// limits as the query form.
func (h *Handlers) parseSearchBody(r *http.Request) (*stac.SearchParams, error) {
	defer r.Body.Close()

	var params stac.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", stac.ErrValidation, err)
	}
	if params.Limit == 0 {
		params.Limit = h.cfg.Search.DefaultLimit
	}
	params.ClampLimit(h.cfg.Search.MaxLimit)
	if err := stac.ValidateSearchParams(&params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Scene returns one canonical scene by its "provider:originalId" id.
// GET /scenes/{sceneId}
func (h *Handlers) Scene(w http.ResponseWriter, r *http.Request) {
	sceneID, err := url.PathUnescape(chi.URLParam(r, "sceneId"))
	if err != nil || sceneID == "" {
		WriteInvalidParameter(w, "invalid scene id")
		return
	}

	adapter, originalID, err := h.registry.ResolveScene(sceneID)
	if err != nil {
		h.writeSceneError(w, r, sceneID, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.providerTimeout())
	defer cancel()

	item, err := adapter.GetScene(ctx, originalID)
	if err != nil {
		h.writeSceneError(w, r, sceneID, provider.Classify(err))
		return
	}

	w.Header().Set("Cache-Control", sceneCacheControl)
	WriteGeoJSON(w, http.StatusOK, item)
}

// Assets resolves band URLs for a scene.
// GET /assets?scene_id=<id>&bands=<csv>&format=cog
func (h *Handlers) Assets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sceneID := strings.TrimSpace(query.Get("scene_id"))
	if sceneID == "" {
		WriteInvalidParameter(w, "scene_id is required")
		return
	}

	var bands []string
	for _, b := range strings.Split(query.Get("bands"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			bands = append(bands, b)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.providerTimeout())
	defer cancel()

	resolution, err := h.resolver.Resolve(ctx, sceneID, bands, strings.TrimSpace(query.Get("format")))
	if err != nil {
		if errors.Is(err, assets.ErrUnsupportedFormat) {
			WriteInvalidParameter(w, err.Error())
			return
		}
		h.writeSceneError(w, r, sceneID, err)
		return
	}

	w.Header().Set("Cache-Control", assetsCacheControl)
	WriteJSON(w, http.StatusOK, resolution)
}

// writeSceneError maps the provider error taxonomy onto HTTP responses.
func (h *Handlers) writeSceneError(w http.ResponseWriter, r *http.Request, sceneID string, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider):
		WriteUnknownProvider(w, err.Error())
	case errors.Is(err, provider.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeSceneNotFound, fmt.Sprintf("scene %q not found", sceneID))
	default:
		h.logger.Warn("scene lookup failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("scene_id", sceneID),
			slog.String("error", err.Error()),
		)
		WriteUpstreamError(w, "upstream service error")
	}
}

type processRequest struct {
	Operation jobs.Operation `json:"operation"`
	SceneID   string         `json:"scene_id"`
	BBox      []float64      `json:"bbox,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

type processResponse struct {
	JobID     string         `json:"job_id"`
	Status    jobs.Status    `json:"status"`
	Operation jobs.Operation `json:"operation"`
	SceneID   string         `json:"scene_id"`
	BBox      []float64      `json:"bbox"`
	PollURL   string         `json:"poll_url"`
	CreatedAt time.Time      `json:"created_at"`
}

// SubmitJob queues a processing job for an external worker.
// POST /process
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "processing queue is disabled")
		return
	}
	defer r.Body.Close()

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	job := &jobs.Job{
		Operation: req.Operation,
		SceneID:   req.SceneID,
		BBox:      req.BBox,
		Params:    req.Params,
	}
	if err := jobs.Validate(job); err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}
	if _, _, err := h.registry.ResolveScene(job.SceneID); errors.Is(err, provider.ErrUnknownProvider) {
		WriteUnknownProvider(w, err.Error())
		return
	}

	queued, err := h.queue.Submit(r.Context(), job)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidJob) {
			WriteInvalidParameter(w, err.Error())
			return
		}
		h.logger.Error("failed to submit job",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("operation", string(job.Operation)),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "failed to queue job")
		return
	}
	h.metrics.JobSubmitted(string(queued.Operation))

	h.logger.Info("job queued",
		slog.String("job_id", queued.ID),
		slog.String("operation", string(queued.Operation)),
		slog.String("scene_id", queued.SceneID),
	)

	WriteJSON(w, http.StatusAccepted, processResponse{
		JobID:     queued.ID,
		Status:    queued.Status,
		Operation: queued.Operation,
		SceneID:   queued.SceneID,
		BBox:      queued.BBox,
		PollURL:   "/process/" + queued.ID,
		CreatedAt: queued.CreatedAt,
	})
}

// GetJob returns a job record.
// GET /process/{jobId}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "processing queue is disabled")
		return
	}

	jobID := chi.URLParam(r, "jobId")
	job, err := h.queue.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeJobNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}
		h.logger.Error("failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "failed to load job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

func (h *Handlers) providerTimeout() time.Duration {
	if h.cfg.Search.ProviderTimeout > 0 {
		return h.cfg.Search.ProviderTimeout
	}
	return 15 * time.Second
}

// buildSTACCollection converts a CollectionConfig to a STAC Collection.
// providers lists the ids of the registered providers serving it.
func (h *Handlers) buildSTACCollection(cfg *config.CollectionConfig, providers []string, baseURL string) *gostac.Collection {
	collection := stac.NewCollection(
		cfg.ID,
		cfg.Title,
		cfg.Description,
		h.cfg.STAC.Version,
	)

	collection.License = cfg.License
	collection.Keywords = cfg.Keywords

	if len(cfg.Providers) > 0 {
		collection.Providers = make([]*gostac.Provider, len(cfg.Providers))
		for i, p := range cfg.Providers {
			collection.Providers[i] = &gostac.Provider{
				Name:        p.Name,
				Description: p.Description,
				Roles:       p.Roles,
				Url:         p.URL,
			}
		}
	}

	collection.Extent = &gostac.Extent{
		Spatial: &gostac.SpatialExtent{
			Bbox: cfg.Extent.Spatial.BBox,
		},
		Temporal: &gostac.TemporalExtent{
			Interval: cfg.Extent.Temporal.Interval,
		},
	}

	for k, v := range cfg.Summaries {
		collection.Summaries[k] = v
	}
	if providers == nil {
		providers = []string{}
	}
	collection.Summaries["fed:providers"] = providers

	collection.Links = append(collection.Links,
		&gostac.Link{
			Rel:  "self",
			Href: fmt.Sprintf("%s/collections/%s", baseURL, cfg.ID),
			Type: "application/json",
		},
		&gostac.Link{
			Rel:  "root",
			Href: baseURL + "/",
			Type: "application/json",
		},
		&gostac.Link{
			Rel:  "parent",
			Href: baseURL + "/",
			Type: "application/json",
		},
		&gostac.Link{
			Rel:  "search",
			Href: fmt.Sprintf("%s/search?collections=%s", baseURL, url.QueryEscape(cfg.ID)),
			Type: "application/geo+json",
		},
	)

	return collection
}
