// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"taskctl/internal/model"
	"taskctl/internal/service"
)

// TimeLayout is used for every timestamp shown to the user.
const TimeLayout = "2006-01-02 15:04"

// maxTableText caps free-text cells so rows stay on one line.
const maxTableText = 48

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := newTable(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// TaskTable writes one row per task.
func TaskTable(w io.Writer, tasks []model.Task) error {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			truncate(normalizeTitle(t.Title)),
			t.Status.Label(),
			formatTime(t.UpdatedAt),
		})
	}
	return render(w, []string{"id", "title", "status", "updated"}, rows)
}

// UserTable writes one row per user.
func UserTable(w io.Writer, users []model.User) error {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			strconv.Itoa(u.ID),
			truncate(normalizeTitle(u.Name)),
			u.Email,
			string(u.Role),
			provider(u),
			formatTime(u.CreatedAt),
		})
	}
	return render(w, []string{"id", "name", "email", "role", "login", "created"}, rows)
}

// Pager writes the paging line under a table, e.g. "page 2 of 3 (28 tasks)".
func Pager[T any](w io.Writer, p model.Page[T], noun string) {
	pages := p.TotalPages()
	if pages == 0 {
		pages = 1
	}
	fmt.Fprintf(w, "page %d of %d (%d %s)\n", p.Page, pages, p.Total, plural(p.Total, noun))
}

// TaskDetail writes every field of a task, one per line.
func TaskDetail(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "ID:          %d\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", normalizeTitle(t.Title))
	fmt.Fprintf(w, "Status:      %s\n", t.Status.Label())
	if t.Description != nil && strings.TrimSpace(*t.Description) != "" {
		fmt.Fprintf(w, "Description: %s\n", *t.Description)
	}
	fmt.Fprintf(w, "Owner:       %d\n", t.UserID)
	fmt.Fprintf(w, "Created:     %s\n", formatTime(t.CreatedAt))
	fmt.Fprintf(w, "Updated:     %s\n", formatTime(t.UpdatedAt))
}

// UserDetail writes the profile shown by whoami. info is optional.
func UserDetail(w io.Writer, u model.User, info *service.TokenInfo, now time.Time) {
	fmt.Fprintf(w, "ID:      %d\n", u.ID)
	fmt.Fprintf(w, "Name:    %s\n", normalizeTitle(u.Name))
	fmt.Fprintf(w, "Email:   %s\n", u.Email)
	fmt.Fprintf(w, "Role:    %s\n", u.Role)
	fmt.Fprintf(w, "Login:   %s\n", provider(u))
	if info == nil || info.ExpiresAt.IsZero() {
		return
	}
	expiry := info.ExpiresAt.Local().Format(TimeLayout)
	if info.Expired(now) {
		expiry += " (expired)"
	}
	fmt.Fprintf(w, "Expires: %s\n", expiry)
}

// StatusCounts writes "label: n" lines in display order followed by the total.
func StatusCounts(w io.Writer, counts map[model.TaskStatus]int) {
	total := 0
	for _, st := range model.Statuses {
		n := counts[st]
		total += n
		fmt.Fprintf(w, "%-12s %d\n", st.Label()+":", n)
	}
	fmt.Fprintf(w, "%-12s %d\n", "Total:", total)
}

// FormatListName formats a list name for the google-lists command.
func FormatListName(w io.Writer, list service.ExternalList) {
	title := normalizeTitle(list.Title)
	if list.IsDefault {
		title += " [default]"
	}
	fmt.Fprintln(w, title)
}

func provider(u model.User) string {
	if u.OAuthProvider != nil && *u.OAuthProvider != "" {
		return *u.OAuthProvider
	}
	return "password"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimeLayout)
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTableText {
		return s
	}
	return string(r[:maxTableText-3]) + "..."
}

// normalizeTitle normalizes a title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
