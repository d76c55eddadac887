package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Property names in the prospect database.
const (
	PropName          = "Name"
	PropSIREN         = "SIREN"
	PropGrade         = "Grade"
	PropQualification = "Qualification"
	PropWebsite       = "Site Web"
	PropEmail         = "Email"
	PropPhone         = "Telephone"
	PropRevenue       = "CA"
	PropDirector      = "Dirigeant"
	PropCity          = "Ville"
	PropJustification = "Justification"
)

// UpsertSummary counts what an upsert did.
type UpsertSummary struct {
	Created int
	Updated int
	Failed  int
}

func richText(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

// ProspectProperties maps a scored record to page properties. Empty URL,
// email and phone values are left out since Notion rejects them.
func ProspectProperties(sr model.ScoredRecord) notionapi.Properties {
	r := sr.Record
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: r.Name}},
			},
		},
		PropSIREN:         richText(r.SIREN),
		PropQualification: richText(sr.Score.Label),
		PropDirector:      richText(r.Director),
		PropCity:          richText(r.Address.City),
		PropJustification: richText(sr.Score.Justification),
	}
	if sr.Score.Grade != "" {
		props[PropGrade] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(sr.Score.Grade)},
		}
	}
	if r.Website != "" {
		props[PropWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: r.Website}
	}
	if r.Email != "" {
		props[PropEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: r.Email}
	}
	if r.Phone != "" {
		props[PropPhone] = notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: r.Phone}
	}
	if r.Revenue != nil {
		props[PropRevenue] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(*r.Revenue)}
	}
	return props
}

// FindBySIREN returns the ID of the page holding siren, or "" when none.
func FindBySIREN(ctx context.Context, c Client, dbID, siren string) (string, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropSIREN,
			RichText: &notionapi.TextFilterCondition{Equals: siren},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: find siren %s", siren))
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// UpsertProspects writes one page per SIREN: the existing page is updated,
// otherwise a new one is created. A failed record is logged and counted;
// only cancellation stops the loop.
func UpsertProspects(ctx context.Context, c Client, dbID string, records []model.ScoredRecord) (UpsertSummary, error) {
	var sum UpsertSummary
	for _, sr := range records {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "notion: upsert cancelled")
		}
		created, err := upsert(ctx, c, dbID, sr)
		switch {
		case err != nil:
			sum.Failed++
			zap.L().Warn("notion: upsert failed",
				zap.String("siren", sr.Record.SIREN),
				zap.String("stage", "notion"),
				zap.Error(err),
			)
		case created:
			sum.Created++
		default:
			sum.Updated++
		}
	}
	return sum, nil
}

func upsert(ctx context.Context, c Client, dbID string, sr model.ScoredRecord) (bool, error) {
	pageID, err := FindBySIREN(ctx, c, dbID, sr.Record.SIREN)
	if err != nil {
		return false, err
	}
	props := ProspectProperties(sr)

	if pageID != "" {
		if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return false, err
		}
		return false, nil
	}

	_, err = c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
