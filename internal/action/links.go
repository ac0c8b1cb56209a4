package action

import (
	"fmt"
	"net/url"

	"github.com/planhub/concierge/internal/extract"
)

// DeepLink builds the platform URL for an entity's detail view. Kinds
// without a dedicated route fall back to the hierarchy browser.
func DeepLink(baseURL string, kind extract.EntityKind, id uint) string {
	switch kind {
	case extract.KindProject:
		return fmt.Sprintf("%s/projects/%d", baseURL, id)
	case extract.KindTask:
		return fmt.Sprintf("%s/tasks/%d", baseURL, id)
	case extract.KindSubtask:
		return fmt.Sprintf("%s/subtasks/%d", baseURL, id)
	case extract.KindBug:
		return fmt.Sprintf("%s/bugs/%d", baseURL, id)
	case extract.KindUserStory:
		return fmt.Sprintf("%s/user-stories/%d", baseURL, id)
	case extract.KindUseCase:
		return fmt.Sprintf("%s/use-cases/%d", baseURL, id)
	case extract.KindTestCase:
		return fmt.Sprintf("%s/test-cases/%d", baseURL, id)
	case extract.KindProgram:
		return fmt.Sprintf("%s/programs/%d", baseURL, id)
	}
	return baseURL + "/hierarchy"
}

// ReportLink builds a reports URL from whichever parameters are present.
func ReportLink(baseURL, reportType, projectID, start, end string) string {
	q := url.Values{}
	if reportType != "" {
		q.Set("type", reportType)
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	link := baseURL + "/reports"
	if enc := q.Encode(); enc != "" {
		link += "?" + enc
	}
	return link
}
