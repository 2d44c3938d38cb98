// Package datarobottest provides an in-memory fake of the platform REST API for
// tests. Every long-running request goes through a status resource that stays
// pending for a configurable number of polls before it resolves.
package datarobottest

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/drtune/internal/datarobot"
)

// Token is the API token the server accepts unless WithToken overrides it.
const Token = "test-token"

const apiPrefix = "/api/v2"

// Request is a call the server received.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// TuningRequest is a recorded advanced tuning run.
type TuningRequest struct {
	ProjectID   string
	ModelID     string
	Description *string
	Values      map[string]any // by parameter id
}

// FrozenRequest is a recorded frozen model request.
type FrozenRequest struct {
	ProjectID string
	ModelID   string
	SamplePct *float64
	Datetime  bool
}

// Series is a multiseries detection result the server reports once detection
// has been requested.
type Series struct {
	IDColumns []string
	TimeUnit  string
	TimeStep  int
}

type asyncOp struct {
	remaining int
	location  string
	fail      string
	done      func()
}

type job struct {
	id        string
	projectID string
	remaining int
	fail      bool
	build     func() *datarobot.Model
	model     *datarobot.Model
}

// Server is a fake platform. Configure it with options; its handlers are safe
// for concurrent use.
type Server struct {
	*httptest.Server

	token        string
	pendingPolls int
	blueprints   []datarobot.Blueprint
	parameters   []datarobot.TuningParameter
	byProject    map[int][]datarobot.TuningParameter // by 1-based project number
	series       []Series
	failJobs     bool
	failAsync    string

	seq atomic.Int64

	mu         sync.Mutex
	requests   []Request
	projects   map[string]*datarobot.Project
	uploads    map[string]string // project id to uploaded file name or url
	order      []string
	models     map[string][]*datarobot.Model
	tuning     map[string][]datarobot.TuningParameter // by model id
	jobs       map[string]*job
	statuses   map[string]*asyncOp
	detected   map[string][]Series // by project id
	tunings    []TuningRequest
	frozen     []FrozenRequest
	partitions []datarobot.DatetimePartitioningSpec
	targets    map[string]map[string]any
	unlocked   map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithToken sets the accepted bearer token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithPendingPolls sets how many polls a status or model job answers pending
// before it resolves.
func WithPendingPolls(n int) Option {
	return func(s *Server) { s.pendingPolls = n }
}

// WithBlueprints replaces the blueprints offered to every project.
func WithBlueprints(bps ...datarobot.Blueprint) Option {
	return func(s *Server) { s.blueprints = bps }
}

// WithTuningParameters replaces the parameters every trained model exposes.
func WithTuningParameters(params ...datarobot.TuningParameter) Option {
	return func(s *Server) { s.parameters = params }
}

// WithProjectTuningParameters replaces the parameters exposed by models
// trained in the n-th created project, counting from 1.
func WithProjectTuningParameters(n int, params ...datarobot.TuningParameter) Option {
	return func(s *Server) {
		if s.byProject == nil {
			s.byProject = make(map[int][]datarobot.TuningParameter)
		}
		s.byProject[n] = params
	}
}

// WithSeries sets what multiseries detection finds.
func WithSeries(series ...Series) Option {
	return func(s *Server) { s.series = series }
}

// WithFailingJobs makes every model job end in error.
func WithFailingJobs() Option {
	return func(s *Server) { s.failJobs = true }
}

// WithFailingAsync makes every status resource report the given error status.
func WithFailingAsync(status string) Option {
	return func(s *Server) { s.failAsync = status }
}

// DefaultBlueprints returns the blueprints offered when none are configured.
func DefaultBlueprints() []datarobot.Blueprint {
	types := []string{
		"eXtreme Gradient Boosted Trees Classifier",
		"Regularized Logistic Regression (L2)",
		"Random Forest Classifier (Gini)",
		"Keras Slim Residual Neural Network Classifier",
		"Light Gradient Boosted Trees",
		"Elastic-Net Regressor (L2 / Gamma Deviance)",
	}
	bps := make([]datarobot.Blueprint, len(types))
	for i, t := range types {
		bps[i] = datarobot.Blueprint{
			ID:        fmt.Sprintf("bp-%d", i),
			ModelType: t,
			Processes: []string{"Missing Values Imputed", t},
		}
	}
	return bps
}

// DefaultTuningParameters returns the parameters exposed when none are configured.
func DefaultTuningParameters() []datarobot.TuningParameter {
	const task = "eXtreme Gradient Boosted Trees"
	return []datarobot.TuningParameter{
		{ParameterName: "learning_rate", ParameterID: "p-learning-rate", TaskName: task, DefaultValue: 0.05, CurrentValue: 0.05},
		{ParameterName: "max_depth", ParameterID: "p-max-depth", TaskName: task, DefaultValue: 3.0, CurrentValue: 5.0},
		{ParameterName: "n_estimators", ParameterID: "p-n-estimators", TaskName: task, DefaultValue: 100.0, CurrentValue: 250.0},
		{ParameterName: "imputation_strategy", ParameterID: "p-imputation", TaskName: "Missing Values Imputed", DefaultValue: "median", CurrentValue: "median"},
	}
}

// NewServer starts a fake platform.
func NewServer(opts ...Option) *Server {
	s := &Server{
		token:      Token,
		blueprints: DefaultBlueprints(),
		parameters: DefaultTuningParameters(),
		series:     []Series{{IDColumns: []string{"Store"}, TimeUnit: "DAY", TimeStep: 1}},
		projects:   make(map[string]*datarobot.Project),
		uploads:    make(map[string]string),
		models:     make(map[string][]*datarobot.Model),
		tuning:     make(map[string][]datarobot.TuningParameter),
		jobs:       make(map[string]*job),
		statuses:   make(map[string]*asyncOp),
		detected:   make(map[string][]Series),
		targets:    make(map[string]map[string]any),
		unlocked:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// Endpoint returns the API root to hand to datarobot.NewClient.
func (s *Server) Endpoint() string {
	return s.URL + apiPrefix
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	p := func(method, path string) string { return method + " " + apiPrefix + path }

	mux.HandleFunc(p("GET", "/status/{id}/{$}"), s.handleStatus)
	mux.HandleFunc(p("POST", "/projects/{$}"), s.handleCreateProject)
	mux.HandleFunc(p("GET", "/projects/{$}"), s.handleListProjects)
	mux.HandleFunc(p("GET", "/projects/{pid}/{$}"), s.handleGetProject)
	mux.HandleFunc(p("PATCH", "/projects/{pid}/{$}"), s.handleUpdateProject)
	mux.HandleFunc(p("PATCH", "/projects/{pid}/aim/{$}"), s.handleAim)
	mux.HandleFunc(p("GET", "/projects/{pid}/blueprints/{$}"), s.handleBlueprints)
	mux.HandleFunc(p("POST", "/projects/{pid}/models/{$}"), s.handleTrain)
	mux.HandleFunc(p("POST", "/projects/{pid}/datetimeModels/{$}"), s.handleTrain)
	mux.HandleFunc(p("GET", "/projects/{pid}/models/{$}"), s.handleListModels)
	mux.HandleFunc(p("GET", "/projects/{pid}/models/{mid}/{$}"), s.handleGetModel)
	mux.HandleFunc(p("GET", "/projects/{pid}/modelJobs/{jid}/{$}"), s.handleModelJob)
	mux.HandleFunc(p("GET", "/projects/{pid}/models/{mid}/advancedTuning/parameters/{$}"), s.handleTuningParameters)
	mux.HandleFunc(p("POST", "/projects/{pid}/models/{mid}/advancedTuning/{$}"), s.handleTune)
	mux.HandleFunc(p("POST", "/projects/{pid}/frozenModels/{$}"), s.handleFrozen)
	mux.HandleFunc(p("POST", "/projects/{pid}/frozenDatetimeModels/{$}"), s.handleFrozen)
	mux.HandleFunc(p("GET", "/projects/{pid}/features/{name}/{$}"), s.handleFeature)
	mux.HandleFunc(p("GET", "/projects/{pid}/features/{name}/multiseriesProperties/{$}"), s.handleMultiseries)
	mux.HandleFunc(p("POST", "/projects/{pid}/multiseriesProperties/{$}"), s.handleDetectMultiseries)
	mux.HandleFunc(p("POST", "/projects/{pid}/datetimePartitioning/{$}"), s.handlePartitioning)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "Invalid API token")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) nextID(prefix string) string {
	return fmt.Sprintf("%s%04d", prefix, s.seq.Add(1))
}

func (s *Server) abs(path string) string {
	return s.URL + apiPrefix + path
}

// newStatus registers an async operation and answers 202 pointing at it.
// Callers hold s.mu.
func (s *Server) newStatus(w http.ResponseWriter, location string, done func()) {
	id := s.nextID("st")
	s.statuses[id] = &asyncOp{remaining: s.pendingPolls, location: location, fail: s.failAsync, done: done}
	w.Header().Set("Location", s.abs("/status/"+id+"/"))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.statuses[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "status not found")
		return
	}
	switch {
	case op.fail != "":
		writeJSON(w, http.StatusOK, map[string]any{"status": op.fail, "message": "remote processing failed"})
	case op.remaining > 0:
		op.remaining--
		writeJSON(w, http.StatusOK, map[string]any{"status": "RUNNING"})
	default:
		if op.done != nil {
			op.done()
			op.done = nil
		}
		w.Header().Set("Location", s.abs(op.location))
		w.WriteHeader(http.StatusSeeOther)
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var name, source string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		name = r.FormValue("projectName")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "file is required")
			return
		}
		_ = f.Close()
		source = hdr.Filename
	} else {
		var payload struct {
			ProjectName string `json:"projectName"`
			URL         string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.URL == "" {
			writeError(w, http.StatusUnprocessableEntity, "url is required")
			return
		}
		name, source = payload.ProjectName, payload.URL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("proj")
	s.newStatus(w, "/projects/"+id+"/", func() {
		s.projects[id] = &datarobot.Project{ID: id, ProjectName: name, FileName: source, Stage: "aim"}
		s.uploads[id] = source
		s.order = append(s.order, id)
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datarobot.Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.projects[id])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) project(w http.ResponseWriter, r *http.Request) (*datarobot.Project, bool) {
	p, ok := s.projects[r.PathValue("pid")]
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
	}
	return p, ok
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.project(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		HoldoutUnlocked *bool `json:"holdoutUnlocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	if payload.HoldoutUnlocked != nil && *payload.HoldoutUnlocked {
		p.HoldoutUnlocked = true
		s.unlocked[p.ID] = true
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAim(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	target, _ := payload["target"].(string)
	if target == "" {
		writeError(w, http.StatusUnprocessableEntity, "target is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	if p.Target != "" {
		writeError(w, http.StatusConflict, "target already set")
		return
	}
	s.targets[p.ID] = payload
	useTS, _ := payload["useTimeSeries"].(bool)
	s.newStatus(w, "/projects/"+p.ID+"/", func() {
		p.Target = target
		p.Stage = "modeling"
		p.UseTimeSeries = useTS
	})
}

func (s *Server) handleBlueprints(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	if p.Target == "" {
		writeError(w, http.StatusUnprocessableEntity, "project has no target")
		return
	}
	out := make([]datarobot.Blueprint, len(s.blueprints))
	for i, bp := range s.blueprints {
		bp.ProjectID = p.ID
		out[i] = bp
	}
	writeJSON(w, http.StatusOK, out)
}

// newJob registers a model job and answers 202 pointing at it. Callers hold s.mu.
func (s *Server) newJob(w http.ResponseWriter, projectID string, build func() *datarobot.Model) {
	id := s.nextID("job")
	s.jobs[id] = &job{id: id, projectID: projectID, remaining: s.pendingPolls, fail: s.failJobs, build: build}
	w.Header().Set("Location", s.abs("/projects/"+projectID+"/modelJobs/"+id+"/"))
	w.WriteHeader(http.StatusAccepted)
}

// addModel stores a model with its own copy of the tuning parameters. Callers hold s.mu.
func (s *Server) addModel(m *datarobot.Model, params []datarobot.TuningParameter) *datarobot.Model {
	m.ID = s.nextID("model")
	s.models[m.ProjectID] = append([]*datarobot.Model{m}, s.models[m.ProjectID]...)
	s.tuning[m.ID] = slices.Clone(params)
	return m
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BlueprintID string `json:"blueprintId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	idx := slices.IndexFunc(s.blueprints, func(b datarobot.Blueprint) bool { return b.ID == payload.BlueprintID })
	if idx < 0 {
		writeError(w, http.StatusNotFound, "blueprint not found")
		return
	}
	bp := s.blueprints[idx]
	s.newJob(w, p.ID, func() *datarobot.Model {
		pct := 64.0
		return s.addModel(&datarobot.Model{
			ProjectID:   p.ID,
			BlueprintID: bp.ID,
			ModelType:   bp.ModelType,
			Processes:   bp.Processes,
			SamplePct:   &pct,
		}, s.parametersFor(p.ID))
	})
}

// parametersFor returns the tuning parameters of models trained in a project. Callers hold s.mu.
func (s *Server) parametersFor(projectID string) []datarobot.TuningParameter {
	if params, ok := s.byProject[slices.Index(s.order, projectID)+1]; ok {
		return params
	}
	return s.parameters
}

func (s *Server) handleModelJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[r.PathValue("jid")]
	if !ok || j.projectID != r.PathValue("pid") {
		writeError(w, http.StatusNotFound, "model job not found")
		return
	}
	switch {
	case j.fail:
		writeJSON(w, http.StatusOK, datarobot.ModelJob{ID: j.id, ProjectID: j.projectID, Status: datarobot.JobError})
	case j.remaining > 0:
		j.remaining--
		writeJSON(w, http.StatusOK, datarobot.ModelJob{ID: j.id, ProjectID: j.projectID, Status: datarobot.JobInProgress})
	default:
		if j.model == nil {
			j.model = j.build()
		}
		w.Header().Set("Location", s.abs("/projects/"+j.projectID+"/models/"+j.model.ID+"/"))
		w.WriteHeader(http.StatusSeeOther)
	}
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	out := make([]datarobot.Model, 0, len(s.models[p.ID]))
	for _, m := range s.models[p.ID] {
		out = append(out, *m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) model(w http.ResponseWriter, r *http.Request) (*datarobot.Model, bool) {
	for _, m := range s.models[r.PathValue("pid")] {
		if m.ID == r.PathValue("mid") {
			return m, true
		}
	}
	writeError(w, http.StatusNotFound, "model not found")
	return nil, false
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.model(w, r); ok {
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) handleTuningParameters(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.model(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, datarobot.TuningParameters{Parameters: s.tuning[m.ID]})
}

func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TuningDescription *string `json:"tuningDescription"`
		TuningParameters  []struct {
			ParameterID string `json:"parameterId"`
			Value       any    `json:"value"`
		} `json:"tuningParameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.model(w, r)
	if !ok {
		return
	}
	params := slices.Clone(s.tuning[m.ID])
	values := make(map[string]any, len(payload.TuningParameters))
	for _, tp := range payload.TuningParameters {
		idx := slices.IndexFunc(params, func(p datarobot.TuningParameter) bool { return p.ParameterID == tp.ParameterID })
		if idx < 0 {
			writeError(w, http.StatusUnprocessableEntity, "unknown parameter "+tp.ParameterID)
			return
		}
		params[idx].CurrentValue = tp.Value
		values[tp.ParameterID] = tp.Value
	}
	s.tunings = append(s.tunings, TuningRequest{
		ProjectID:   m.ProjectID,
		ModelID:     m.ID,
		Description: payload.TuningDescription,
		Values:      values,
	})
	parent := *m
	s.newJob(w, m.ProjectID, func() *datarobot.Model {
		tuned := parent
		tuned.ParentModelID = parent.ID
		return s.addModel(&tuned, params)
	})
}

func (s *Server) handleFrozen(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ModelID   string   `json:"modelId"`
		SamplePct *float64 `json:"samplePct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := r.PathValue("pid")
	var parent *datarobot.Model
	for _, m := range s.models[pid] {
		if m.ID == payload.ModelID {
			parent = m
		}
	}
	if parent == nil {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	datetime := strings.Contains(r.URL.Path, "frozenDatetimeModels")
	if !datetime && !s.unlocked[pid] && payload.SamplePct != nil && *payload.SamplePct > 80 {
		writeError(w, http.StatusUnprocessableEntity, "holdout is locked")
		return
	}
	s.frozen = append(s.frozen, FrozenRequest{ProjectID: pid, ModelID: parent.ID, SamplePct: payload.SamplePct, Datetime: datetime})
	frozen := *parent
	s.newJob(w, pid, func() *datarobot.Model {
		frozen.ParentModelID = parent.ID
		frozen.IsFrozen = true
		frozen.SamplePct = payload.SamplePct
		return s.addModel(&frozen, s.tuning[parent.ID])
	})
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.project(w, r); !ok {
		return
	}
	name := r.PathValue("name")
	writeJSON(w, http.StatusOK, datarobot.Feature{ID: 1, Name: name, FeatureType: "Date", DateFormat: "%Y-%m-%d", TimeSeriesEligible: true})
}

func (s *Server) handleMultiseries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	detected := make([]map[string]any, 0, len(s.detected[p.ID]))
	for _, d := range s.detected[p.ID] {
		detected = append(detected, map[string]any{
			"multiseriesIdColumns": d.IDColumns,
			"timeUnit":             d.TimeUnit,
			"timeStep":             d.TimeStep,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"datetimePartitionColumn":      r.PathValue("name"),
		"detectedMultiseriesIdColumns": detected,
	})
}

func (s *Server) handleDetectMultiseries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	s.newStatus(w, "/projects/"+p.ID+"/", func() {
		s.detected[p.ID] = slices.Clone(s.series)
	})
}

func (s *Server) handlePartitioning(w http.ResponseWriter, r *http.Request) {
	var spec datarobot.DatetimePartitioningSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	s.partitions = append(s.partitions, spec)

	n := 1
	if spec.NumberOfBacktests != nil {
		n = *spec.NumberOfBacktests
	}
	backtests := make([]datarobot.Backtest, n)
	for i := range backtests {
		backtests[i] = datarobot.Backtest{
			Index:                    i,
			PrimaryTrainingStartDate: "2012-02-01T00:00:00.000000Z",
			PrimaryTrainingEndDate:   fmt.Sprintf("2014-%02d-01T00:00:00.000000Z", 4-i),
			ValidationStartDate:      fmt.Sprintf("2014-%02d-01T00:00:00.000000Z", 4-i),
			ValidationDuration:       "P0Y0M28D",
			ValidationEndDate:        fmt.Sprintf("2014-%02d-29T00:00:00.000000Z", 4-i),
		}
	}
	writeJSON(w, http.StatusOK, datarobot.DatetimePartitioning{
		ProjectID:                    p.ID,
		DatetimePartitionColumn:      spec.DatetimePartitionColumn,
		AutopilotDataSelectionMethod: spec.AutopilotDataSelectionMethod,
		NumberOfBacktests:            n,
		Backtests:                    backtests,
		UseTimeSeries:                spec.UseTimeSeries,
		FeatureDerivationWindowStart: spec.FeatureDerivationWindowStart,
		FeatureDerivationWindowEnd:   spec.FeatureDerivationWindowEnd,
		ForecastWindowStart:          spec.ForecastWindowStart,
		ForecastWindowEnd:            spec.ForecastWindowEnd,
		MultiseriesIDColumns:         spec.MultiseriesIDColumns,
	})
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Projects returns the created projects in creation order.
func (s *Server) Projects() []datarobot.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datarobot.Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.projects[id])
	}
	return out
}

// Upload returns the file name or url a project was created from.
func (s *Server) Upload(projectID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[projectID]
}

// Models returns a project's models, newest first.
func (s *Server) Models(projectID string) []datarobot.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]datarobot.Model, 0, len(s.models[projectID]))
	for _, m := range s.models[projectID] {
		out = append(out, *m)
	}
	return out
}

// Target returns the payload the project's target was set with.
func (s *Server) Target(projectID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.targets[projectID])
}

// TuningRequests returns the recorded advanced tuning runs.
func (s *Server) TuningRequests() []TuningRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tunings)
}

// FrozenRequests returns the recorded frozen model requests.
func (s *Server) FrozenRequests() []FrozenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.frozen)
}

// PartitioningRequests returns the specs partitioning was generated for.
func (s *Server) PartitioningRequests() []datarobot.DatetimePartitioningSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.partitions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
