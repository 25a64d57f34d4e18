package gradebook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"harvest/internal/codec"
	"harvest/internal/faults"
	"harvest/internal/fetch"
	"harvest/internal/record"
)

const component = "gradebook"

// postedLayout is the date format of the grades table.
const postedLayout = "2006-01-02"

// ParseGrades reads the grades page: one Grade per row of table#grades, one
// Course per distinct course code, and a Meeting placeholder per meeting link.
func ParseGrades(env fetch.Envelope) (*record.ResultSet, error) {
	doc, err := env.HTML()
	if err != nil {
		return nil, err
	}
	table := doc.Find("table#grades")
	if table.Length() == 0 {
		return nil, faults.Missing(component, "table#grades")
	}

	rs := record.NewResultSet()
	courses := make(map[string]*Course)
	var ordered []*Course
	var parseErr error
	table.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		known := len(courses)
		grade, err := parseGradeRow(row, courses)
		if err != nil {
			parseErr = fmt.Errorf("grades row %d: %w", i+1, err)
			return false
		}
		if len(courses) > known {
			ordered = append(ordered, grade.Course)
		}
		rs.Add(grade)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	for _, course := range ordered {
		rs.Add(course)
	}

	seen := make(map[string]bool)
	doc.Find("a[data-meeting]").Each(func(_ int, link *goquery.Selection) {
		id := strings.TrimSpace(link.AttrOr("data-meeting", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		rs.Add(record.NewPlaceholder(KindMeeting, id))
	})
	return rs, nil
}

func parseGradeRow(row *goquery.Selection, courses map[string]*Course) (*Grade, error) {
	id, ok := row.Attr("data-id")
	if !ok || strings.TrimSpace(id) == "" {
		return nil, faults.Missing(component, "tr[data-id]")
	}
	code, ok := row.Attr("data-course")
	if !ok || strings.TrimSpace(code) == "" {
		return nil, faults.Missing(component, "tr[data-course]")
	}
	code = strings.TrimSpace(code)

	course := courses[code]
	if course == nil {
		name, err := cellText(row, "course")
		if err != nil {
			return nil, err
		}
		teacher, _ := cellText(row, "teacher")
		course = &Course{Code: code, Name: name, Teacher: teacher}
		courses[code] = course
	}

	assignment, err := cellText(row, "assignment")
	if err != nil {
		return nil, err
	}
	score, err := cellNumber(row, "score")
	if err != nil {
		return nil, err
	}
	weight := 1.0
	if raw, err := cellText(row, "weight"); err == nil && raw != "" {
		if weight, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, faults.Wrap(faults.ErrMissingElement, component, "parse", "td.weight is not a number", err)
		}
	}
	grade := &Grade{
		Ident:      strings.TrimSpace(id),
		Course:     course,
		Assignment: assignment,
		Score:      score,
		Weight:     weight,
	}
	if raw, err := cellText(row, "posted"); err == nil && raw != "" {
		posted, err := time.Parse(postedLayout, raw)
		if err != nil {
			return nil, faults.Wrap(faults.ErrMissingElement, component, "parse", "td.posted is not a date", err)
		}
		grade.Posted = posted
	}
	return grade, nil
}

func cellText(row *goquery.Selection, class string) (string, error) {
	cell := row.Find("td." + class)
	if cell.Length() == 0 {
		return "", faults.Missing(component, "td."+class)
	}
	return strings.Join(strings.Fields(cell.First().Text()), " "), nil
}

func cellNumber(row *goquery.Selection, class string) (float64, error) {
	text, err := cellText(row, class)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(text, "%"), 64)
	if err != nil {
		return 0, faults.Wrap(faults.ErrMissingElement, component, "parse", fmt.Sprintf("td.%s is not a number", class), err)
	}
	return value, nil
}

// ParseMeetings reads the meetings listing. Entries carrying a title are full
// meetings; bare identifiers become placeholders.
func ParseMeetings(env fetch.Envelope) (*record.ResultSet, error) {
	obj, err := env.JSONObject()
	if err != nil {
		return nil, err
	}
	items, err := codec.Field[[]any](obj, "meetings")
	if err != nil {
		return nil, err
	}
	rs := record.NewResultSet()
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, faults.Wrap(faults.ErrMissingElement, component, "parse", fmt.Sprintf("meetings[%d] is not an object", i), nil)
		}
		if _, full := entry["title"]; !full {
			id, err := codec.Field[string](entry, "id")
			if err != nil {
				return nil, err
			}
			rs.Add(record.NewPlaceholder(KindMeeting, id))
			continue
		}
		meeting, err := meetingFromJSON(entry)
		if err != nil {
			return nil, fmt.Errorf("meetings[%d]: %w", i, err)
		}
		rs.Add(meeting)
	}
	return rs, nil
}

// ParseMeeting reads a single meeting document.
func ParseMeeting(env fetch.Envelope) (*record.ResultSet, error) {
	obj, err := env.JSONObject()
	if err != nil {
		return nil, err
	}
	meeting, err := meetingFromJSON(obj)
	if err != nil {
		return nil, err
	}
	return record.NewResultSet(meeting), nil
}

func meetingFromJSON(obj map[string]any) (*Meeting, error) {
	id, err := codec.Field[string](obj, "id")
	if err != nil {
		return nil, err
	}
	title, err := codec.Field[string](obj, "title")
	if err != nil {
		return nil, err
	}
	meeting := &Meeting{Ident: id, Title: title}
	if meeting.Location, err = codec.OptionalField[string](obj, "location"); err != nil {
		return nil, err
	}
	if meeting.CourseCode, err = codec.OptionalField[string](obj, "course"); err != nil {
		return nil, err
	}
	starts, err := codec.OptionalField[string](obj, "starts")
	if err != nil {
		return nil, err
	}
	if starts != "" {
		if meeting.Starts, err = time.Parse(time.RFC3339, starts); err != nil {
			return nil, faults.Wrap(faults.ErrMissingElement, component, "parse", "meeting starts is not RFC3339", err)
		}
	}
	if meeting.Attendees, err = codec.SliceOf[string](obj["attendees"]); err != nil {
		return nil, err
	}
	return meeting, nil
}
