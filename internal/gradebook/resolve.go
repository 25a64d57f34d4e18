package gradebook

import (
	"context"
	"fmt"

	"harvest/internal/record"
	"harvest/internal/registry"
)

// ResolveMeeting fetches meeting/<id> and returns the meeting it describes.
func ResolveMeeting(ctx context.Context, session registry.Session, placeholder *record.Placeholder) (record.Object, error) {
	env, err := session.Fetch(ctx, "meeting/"+placeholder.Ident)
	if err != nil {
		return nil, err
	}
	rs, err := session.Parse(env)
	if err != nil {
		return nil, fmt.Errorf("meeting %s: %w", placeholder.Ident, err)
	}
	for _, obj := range rs.Get(KindMeeting) {
		if obj.ID() == placeholder.Ident {
			return obj, nil
		}
	}
	return nil, nil
}
