// Package openmrs persists data back into OpenMRS through its FHIR2 module.
package openmrs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
)

// EncounterWriter creates encounters in OpenMRS
type EncounterWriter struct {
	client *fhir.Client
	logger *slog.Logger
}

func NewEncounterWriter(baseURL, username, password string, httpClient *http.Client, logger *slog.Logger) *EncounterWriter {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authed := &http.Client{
		Transport: &basicAuthTransport{username: username, password: password, base: base},
		Timeout:   httpClient.Timeout,
	}

	return &EncounterWriter{
		client: fhir.NewClient(baseURL, "openmrs", authed, logger),
		logger: logger.With("component", "openmrs_writer"),
	}
}

// FindEncounterByIdentifier returns the reference of the encounter carrying system|value, or "" when there is none
func (w *EncounterWriter) FindEncounterByIdentifier(ctx context.Context, system, value string) (string, error) {
	bundle, err := w.client.Search(ctx, fhir.ResourceEncounter, url.Values{"identifier": {system + "|" + value}})
	if err != nil {
		return "", &syncerr.RemoteCallError{Operation: "search", Err: err}
	}

	found, err := fhir.Single[fhir.Encounter](bundle)
	if err != nil {
		return "", err
	}
	switch found.State {
	case fhir.Found:
		return fhir.FormatReference(fhir.ResourceEncounter, found.Resource.ID), nil
	case fhir.Ambiguous:
		return "", &syncerr.RemoteConsistencyError{ResourceType: fhir.ResourceEncounter, Identifier: value, Matches: found.Matches}
	default:
		return "", nil
	}
}

// SaveEncounter creates the encounter and returns its reference, e.g. Encounter/1f0c...
func (w *EncounterWriter) SaveEncounter(ctx context.Context, enc *fhir.Encounter) (string, error) {
	out, err := w.client.Create(ctx, fhir.ResourceEncounter, enc)
	if err != nil {
		return "", &syncerr.RemoteCallError{Operation: "create", Err: err}
	}
	if !out.Created && !out.OK() {
		return "", &syncerr.RemoteCallError{Operation: "create", StatusCode: out.StatusCode, Body: out.ServerMessage()}
	}

	ref := encounterRef(out)
	w.logger.Info("Encounter saved in OpenMRS", "encounter", ref)
	return ref, nil
}

// encounterRef extracts Encounter/{id} from the Location header, e.g. .../Encounter/{id}/_history/1
func encounterRef(out *fhir.Outcome) string {
	loc := out.Location
	if i := strings.Index(loc, "/_history"); i >= 0 {
		loc = loc[:i]
	}
	if id := path.Base(loc); loc != "" && id != "." && id != "/" {
		return fhir.FormatReference(fhir.ResourceEncounter, id)
	}
	return fmt.Sprintf("%s/unknown-%d", fhir.ResourceEncounter, out.StatusCode)
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}
