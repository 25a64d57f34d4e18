package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture writes content to dir/name, creating parent directories.
func WriteFixture(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// GradesHTML is the reference grades page: two Algebra grades, one Biology
// grade, and links to meetings m7 (twice) and m9.
const GradesHTML = `<!DOCTYPE html>
<html>
<body>
  <table id="grades">
    <thead><tr><th>Course</th><th>Teacher</th><th>Assignment</th><th>Score</th><th>Weight</th><th>Posted</th></tr></thead>
    <tbody>
      <tr data-id="g1" data-course="MATH101">
        <td class="course">Algebra I</td><td class="teacher">Ms. Rivera</td>
        <td class="assignment">Quiz 1</td><td class="score">91</td><td class="weight">0.1</td><td class="posted">2024-09-12</td>
      </tr>
      <tr data-id="g2" data-course="MATH101">
        <td class="course">Algebra I</td><td class="teacher">Ms. Rivera</td>
        <td class="assignment">Midterm</td><td class="score">78.5%</td><td class="weight">0.3</td><td class="posted">2024-10-20</td>
      </tr>
      <tr data-id="g3" data-course="BIO110">
        <td class="course">Biology</td><td class="teacher">Mr. Okafor</td>
        <td class="assignment">Lab report</td><td class="score">88</td><td class="weight"></td><td class="posted"></td>
      </tr>
    </tbody>
  </table>
  <ul class="meetings">
    <li><a href="/meeting/m7" data-meeting="m7">Parent conference</a></li>
    <li><a href="/meeting/m7" data-meeting="m7">Parent conference (reminder)</a></li>
    <li><a href="/meeting/m9" data-meeting="m9">Science fair briefing</a></li>
  </ul>
</body>
</html>
`

// MeetingsJSON lists one full meeting and one bare reference.
const MeetingsJSON = `{"meetings":[
  {"id":"m3","title":"Back to school night","starts":"2024-09-05T18:00:00Z","location":"Gym"},
  {"id":"m7"}
]}`

// MeetingM7JSON is the detail document for meeting m7. Meeting m9 has no
// fixture, so fetching it reports an upstream failure.
const MeetingM7JSON = `{"id":"m7","title":"Parent conference","starts":"2024-11-14T16:30:00Z","location":"Room 12","course":"MATH101","attendees":["Ms. Rivera","Jordan"]}`

// WriteGradebookFixtures writes the reference portal into dir.
func WriteGradebookFixtures(t testing.TB, dir string) {
	t.Helper()

	WriteFixture(t, dir, "grades.html", GradesHTML)
	WriteFixture(t, dir, "meetings.json", MeetingsJSON)
	WriteFixture(t, dir, "meeting/m7.json", MeetingM7JSON)
}
