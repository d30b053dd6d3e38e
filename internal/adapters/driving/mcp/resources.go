package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for clinitrace resources.
	uriScheme = "clinitrace://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "timeline/summary",
		Name:        "timeline-summary",
		Description: "Overview of the clinical timeline with every active event",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "medications",
		Name:        "medications",
		Description: "The active medication courses, oldest first",
		MIMEType:    "application/json",
	}, s.handleMedicationsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "conflicts",
		Name:        "conflicts",
		Description: "Overlapping medication courses awaiting review",
		MIMEType:    "application/json",
	}, s.handleConflictsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "events/{date}",
		Name:        "events-on-date",
		Description: "Clinical events on a given date (YYYY-MM-DD)",
		MIMEType:    "application/json",
	}, s.handleEventsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "notes/{noteId}",
		Name:        "note-content",
		Description: "Text of a narrative note",
		MIMEType:    "text/plain",
	}, s.handleNoteResource)
}

// summaryView is the JSON body of the summary resource.
type summaryView struct {
	First       string        `json:"first,omitempty"`
	Last        string        `json:"last,omitempty"`
	Medications int           `json:"medications"`
	Ongoing     int           `json:"ongoing"`
	Ingredients []string      `json:"ingredients"`
	Conflicts   int           `json:"conflicts"`
	Events      []EventOutput `json:"events"`
}

func (s *Server) handleSummaryResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sum := s.ports.Timeline.Summary()
	return jsonResult(req.Params.URI, summaryView{
		First:       sum.First.String(),
		Last:        sum.Last.String(),
		Medications: sum.Medications,
		Ongoing:     sum.Ongoing,
		Ingredients: sum.Ingredients,
		Conflicts:   sum.Conflicts,
		Events:      toEventOutputs(sum.Events),
	})
}

func (s *Server) handleMedicationsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	rec := s.ports.Timeline.Record()
	return jsonResult(req.Params.URI, toMedicationOutputs(rec.ActiveMedications()))
}

func (s *Server) handleConflictsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ledger == nil {
		return jsonResult(req.Params.URI, []ConflictOutput{})
	}
	return jsonResult(req.Params.URI, toConflictOutputs(s.ports.Ledger.Conflicts()))
}

func (s *Server) handleEventsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	raw := extractSuffix(req.Params.URI, "events/")
	if raw == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	date, err := parseDate(raw)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, toEventOutputs(s.ports.Timeline.EventsOn(date)))
}

func (s *Server) handleNoteResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Editor == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// clinitrace://notes/{noteId}
	id := extractSuffix(req.Params.URI, "notes/")
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	note, err := s.ports.Editor.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     note.Text(),
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSuffix returns what follows clinitrace://{path} in uri, or "" when
// uri is not under path or names a nested resource.
func extractSuffix(uri, path string) string {
	prefix := uriScheme + path
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(uri, prefix)
	if strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
