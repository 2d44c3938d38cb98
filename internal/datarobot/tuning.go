package datarobot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// GetAdvancedTuningParameters returns a model's tunable parameters with their
// current values.
func (c *Client) GetAdvancedTuningParameters(ctx context.Context, projectID, modelID string) (*TuningParameters, error) {
	params := &TuningParameters{}
	ref := fmt.Sprintf("projects/%s/models/%s/advancedTuning/parameters/", projectID, modelID)
	if err := c.get(ctx, ref, params); err != nil {
		return nil, fmt.Errorf("get advanced tuning parameters: %w", err)
	}
	return params, nil
}

// ParameterSelector identifies a tuning parameter. Empty fields match
// anything; at least one field must be set.
type ParameterSelector struct {
	TaskName      string
	ParameterName string
	ParameterID   string
}

func (s ParameterSelector) matches(p TuningParameter) bool {
	return (s.TaskName == "" || s.TaskName == p.TaskName) &&
		(s.ParameterName == "" || s.ParameterName == p.ParameterName) &&
		(s.ParameterID == "" || s.ParameterID == p.ParameterID)
}

func (s ParameterSelector) String() string {
	return fmt.Sprintf("task=%q name=%q id=%q", s.TaskName, s.ParameterName, s.ParameterID)
}

// TuningSession collects parameter values for one advanced tuning run of a model.
type TuningSession struct {
	client      *Client
	projectID   string
	modelID     string
	parameters  []TuningParameter
	description string

	mu     sync.Mutex
	values map[string]any // by parameter id
	order  []string
}

// StartAdvancedTuningSession loads the model's parameters and opens a session.
func (c *Client) StartAdvancedTuningSession(ctx context.Context, model *Model) (*TuningSession, error) {
	params, err := c.GetAdvancedTuningParameters(ctx, model.ProjectID, model.ID)
	if err != nil {
		return nil, err
	}
	s := &TuningSession{
		client:     c,
		projectID:  model.ProjectID,
		modelID:    model.ID,
		parameters: params.Parameters,
		values:     make(map[string]any),
	}
	if params.TuningDescription != nil {
		s.description = *params.TuningDescription
	}
	return s, nil
}

// Parameters returns the model's tunable parameters.
func (s *TuningSession) Parameters() []TuningParameter {
	return s.parameters
}

// SetDescription sets the description stored with the tuned model.
func (s *TuningSession) SetDescription(d string) {
	s.mu.Lock()
	s.description = d
	s.mu.Unlock()
}

// SetParameter sets the value of the single parameter the selector matches.
func (s *TuningSession) SetParameter(sel ParameterSelector, value any) error {
	if sel == (ParameterSelector{}) {
		return fmt.Errorf("%w: empty selector", ErrParameterNotFound)
	}
	var match *TuningParameter
	for i := range s.parameters {
		if !sel.matches(s.parameters[i]) {
			continue
		}
		if match != nil {
			return fmt.Errorf("%w: %s", ErrParameterAmbiguous, sel)
		}
		match = &s.parameters[i]
	}
	if match == nil {
		return fmt.Errorf("%w: %s", ErrParameterNotFound, sel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.values[match.ParameterID]; !seen {
		s.order = append(s.order, match.ParameterID)
	}
	s.values[match.ParameterID] = value
	return nil
}

// Len returns how many parameters have a value set.
func (s *TuningSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

type tuningValue struct {
	ParameterID string `json:"parameterId"`
	Value       any    `json:"value"`
}

type tuningRequest struct {
	TuningDescription *string       `json:"tuningDescription"`
	TuningParameters  []tuningValue `json:"tuningParameters"`
}

// Run submits the tuning run and returns the model job id.
func (s *TuningSession) Run(ctx context.Context) (string, error) {
	s.mu.Lock()
	req := tuningRequest{TuningParameters: make([]tuningValue, 0, len(s.order))}
	for _, id := range s.order {
		req.TuningParameters = append(req.TuningParameters, tuningValue{ParameterID: id, Value: s.values[id]})
	}
	if s.description != "" {
		d := s.description
		req.TuningDescription = &d
	}
	s.mu.Unlock()

	if len(req.TuningParameters) == 0 {
		return "", ErrNoParametersSet
	}
	ref := fmt.Sprintf("projects/%s/models/%s/advancedTuning/", s.projectID, s.modelID)
	loc, err := s.client.postForLocation(ctx, http.MethodPost, ref, req)
	if err != nil {
		return "", fmt.Errorf("run advanced tuning: %w", err)
	}
	return idFromLocation(loc)
}
