package gradebook

import (
	"fmt"
	"time"

	"harvest/internal/codec"
	"harvest/internal/record"
)

const (
	KindCourse  record.Kind = "Course"
	KindGrade   record.Kind = "Grade"
	KindMeeting record.Kind = "Meeting"
)

// Codec tags.
const (
	CourseTag  = "gradebook.Course"
	GradeTag   = "gradebook.Grade"
	MeetingTag = "gradebook.Meeting"
)

// Course is a class a student is enrolled in.
type Course struct {
	Code    string
	Name    string
	Teacher string
}

func (c *Course) Kind() record.Kind { return KindCourse }
func (c *Course) ID() string        { return c.Code }

func (c *Course) String() string {
	if c.Teacher == "" {
		return fmt.Sprintf("%s %s", c.Code, c.Name)
	}
	return fmt.Sprintf("%s %s (%s)", c.Code, c.Name, c.Teacher)
}

func (c *Course) Serialize() (any, error) {
	return map[string]any{"code": c.Code, "name": c.Name, "teacher": c.Teacher}, nil
}

func (c *Course) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if c.Code, err = codec.Field[string](m, "code"); err != nil {
		return err
	}
	if c.Name, err = codec.Field[string](m, "name"); err != nil {
		return err
	}
	c.Teacher, err = codec.OptionalField[string](m, "teacher")
	return err
}

// Grade is one scored assignment. Grades of the same course share one
// *Course.
type Grade struct {
	Ident      string
	Course     *Course
	Assignment string
	Score      float64
	Weight     float64
	Posted     time.Time
}

func (g *Grade) Kind() record.Kind { return KindGrade }
func (g *Grade) ID() string        { return g.Ident }

func (g *Grade) String() string {
	course := "?"
	if g.Course != nil {
		course = g.Course.Code
	}
	return fmt.Sprintf("%s %s: %g (weight %g)", course, g.Assignment, g.Score, g.Weight)
}

func (g *Grade) Serialize() (any, error) {
	return map[string]any{
		"id":         g.Ident,
		"course":     g.Course,
		"assignment": g.Assignment,
		"score":      g.Score,
		"weight":     g.Weight,
		"posted":     g.Posted,
	}, nil
}

func (g *Grade) Deserialize(data any) error {
	m, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if g.Ident, err = codec.Field[string](m, "id"); err != nil {
		return err
	}
	if g.Course, err = codec.Field[*Course](m, "course"); err != nil {
		return err
	}
	if g.Assignment, err = codec.Field[string](m, "assignment"); err != nil {
		return err
	}
	if g.Score, err = codec.Field[float64](m, "score"); err != nil {
		return err
	}
	if g.Weight, err = codec.Field[float64](m, "weight"); err != nil {
		return err
	}
	g.Posted, err = codec.OptionalField[time.Time](m, "posted")
	return err
}

// Fields lists the payload keys the current Grade layout writes.
func (g *Grade) Fields() []string {
	return []string{"id", "course", "assignment", "score", "weight", "posted"}
}

// Upgrade migrates payloads written before scores were renamed from points
// and before weights existed.
func (g *Grade) Upgrade(data map[string]any, missing, unexpected codec.KeySet) (map[string]any, error) {
	if missing.Has("score") && unexpected.Has("points") {
		data["score"] = data["points"]
		delete(data, "points")
	}
	if missing.Has("weight") {
		data["weight"] = 1.0
	}
	return data, nil
}

// Meeting is a scheduled meeting, typically a parent-teacher conference.
type Meeting struct {
	Ident      string
	Title      string
	Starts     time.Time
	Location   string
	CourseCode string
	Attendees  []string
}

func (m *Meeting) Kind() record.Kind { return KindMeeting }
func (m *Meeting) ID() string        { return m.Ident }

func (m *Meeting) String() string {
	when := "unscheduled"
	if !m.Starts.IsZero() {
		when = m.Starts.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s (%s)", m.Title, when)
}

func (m *Meeting) Serialize() (any, error) {
	return map[string]any{
		"id":          m.Ident,
		"title":       m.Title,
		"starts":      m.Starts,
		"location":    m.Location,
		"course_code": m.CourseCode,
		"attendees":   m.Attendees,
	}, nil
}

func (m *Meeting) Deserialize(data any) error {
	payload, err := codec.Payload(data)
	if err != nil {
		return err
	}
	if m.Ident, err = codec.Field[string](payload, "id"); err != nil {
		return err
	}
	if m.Title, err = codec.Field[string](payload, "title"); err != nil {
		return err
	}
	if m.Starts, err = codec.OptionalField[time.Time](payload, "starts"); err != nil {
		return err
	}
	if m.Location, err = codec.OptionalField[string](payload, "location"); err != nil {
		return err
	}
	if m.CourseCode, err = codec.OptionalField[string](payload, "course_code"); err != nil {
		return err
	}
	m.Attendees, err = codec.SliceOf[string](payload["attendees"])
	return err
}
