package gradebook

import (
	"fmt"

	"harvest/internal/codec"
	"harvest/internal/fetch"
	"harvest/internal/registry"
)

// RegisterCodecs binds the gradebook types to engine.
func RegisterCodecs(engine *codec.Engine) error {
	for tag, sample := range map[string]codec.Serializable{
		CourseTag:  &Course{},
		GradeTag:   &Grade{},
		MeetingTag: &Meeting{},
	} {
		if err := engine.Register(tag, sample); err != nil {
			return fmt.Errorf("gradebook codecs: %w", err)
		}
	}
	return nil
}

// Register wires the gradebook parsers, resolver, and codecs. It must run
// before reg is sealed.
func Register(reg *registry.Registry, engine *codec.Engine) error {
	if err := RegisterCodecs(engine); err != nil {
		return err
	}
	parsers := []struct {
		resource string
		shape    fetch.Shape
		fn       registry.ParserFunc
	}{
		{"grades", fetch.ShapeHTML, ParseGrades},
		{"meetings", fetch.ShapeJSON, ParseMeetings},
		{"meeting", fetch.ShapeJSON, ParseMeeting},
	}
	for _, p := range parsers {
		if err := reg.RegisterParser(p.resource, p.shape, p.fn); err != nil {
			return fmt.Errorf("gradebook parser %s: %w", p.resource, err)
		}
	}
	if err := reg.RegisterResolver(KindMeeting, ResolveMeeting); err != nil {
		return fmt.Errorf("gradebook resolver: %w", err)
	}
	return nil
}
