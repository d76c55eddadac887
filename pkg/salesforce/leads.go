package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// LeadSource tags every Lead written by this tool.
const LeadSource = "prospect-cli"

// Lead is the subset of Lead fields read back when matching by SIREN.
type Lead struct {
	ID    string `json:"Id" salesforce:"Id"`
	SIREN string `json:"Siren__c" salesforce:"Siren__c"`
}

// UpsertSummary counts what an upsert did.
type UpsertSummary struct {
	Created int
	Updated int
	Failed  int
}

// LeadFields maps a scored record to Lead fields.
func LeadFields(sr model.ScoredRecord) map[string]any {
	r := sr.Record
	last := r.Director
	if last == "" {
		last = "Inconnu"
	}
	fields := map[string]any{
		"Company":     r.Name,
		"LastName":    last,
		"Website":     r.Website,
		"Phone":       r.Phone,
		"Email":       r.Email,
		"City":        r.Address.City,
		"Rating":      string(sr.Score.Grade),
		"Description": sr.Score.Justification,
		"LeadSource":  LeadSource,
		"Siren__c":    r.SIREN,
	}
	if r.Revenue != nil {
		fields["AnnualRevenue"] = float64(*r.Revenue)
	}
	return fields
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// FindLeadIDs maps each SIREN already present in Salesforce to its Lead ID.
func FindLeadIDs(ctx context.Context, c Client, sirens []string) (map[string]string, error) {
	ids := make(map[string]string, len(sirens))
	for _, batch := range chunks(sirens, maxBatchSize) {
		quoted := make([]string, len(batch))
		for i, s := range batch {
			quoted[i] = "'" + escapeSoql(s) + "'"
		}
		soql := fmt.Sprintf("SELECT Id, Siren__c FROM Lead WHERE Siren__c IN (%s)", strings.Join(quoted, ", "))

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, "sf: find leads by siren")
		}
		for _, l := range leads {
			if l.SIREN != "" {
				ids[l.SIREN] = l.ID
			}
		}
	}
	return ids, nil
}

// UpsertLeads updates Leads whose Siren__c already exists and inserts the
// rest, 200 records per call. Per-record failures are counted and logged;
// a failed call fails the whole batch it carried.
func UpsertLeads(ctx context.Context, c Client, records []model.ScoredRecord) (UpsertSummary, error) {
	var sum UpsertSummary
	if len(records) == 0 {
		return sum, nil
	}

	sirens := make([]string, len(records))
	for i, sr := range records {
		sirens[i] = sr.Record.SIREN
	}
	existing, err := FindLeadIDs(ctx, c, sirens)
	if err != nil {
		return sum, err
	}

	var updates []CollectionRecord
	var inserts []map[string]any
	for _, sr := range records {
		fields := LeadFields(sr)
		if id, ok := existing[sr.Record.SIREN]; ok {
			updates = append(updates, CollectionRecord{ID: id, Fields: fields})
			continue
		}
		inserts = append(inserts, fields)
	}

	for _, batch := range chunks(updates, maxBatchSize) {
		res, err := c.UpdateCollection(ctx, "Lead", batch)
		if err != nil {
			return sum, eris.Wrap(err, "sf: update leads")
		}
		ok, failed := tally(res)
		sum.Updated += ok
		sum.Failed += failed
	}
	for _, batch := range chunks(inserts, maxBatchSize) {
		res, err := c.InsertCollection(ctx, "Lead", batch)
		if err != nil {
			return sum, eris.Wrap(err, "sf: insert leads")
		}
		ok, failed := tally(res)
		sum.Created += ok
		sum.Failed += failed
	}
	return sum, nil
}

func tally(results []CollectionResult) (ok, failed int) {
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		failed++
		zap.L().Warn("sf: lead rejected",
			zap.String("stage", "salesforce"),
			zap.String("id", r.ID),
			zap.Strings("errors", r.Errors),
		)
	}
	return ok, failed
}
