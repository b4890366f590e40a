package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/service"
)

type journeyOut struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Emoji      string    `json:"emoji,omitempty"`
	State      string    `json:"state,omitempty"`
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status"`
	UnlockAt   time.Time `json:"unlock_at"`
	Remaining  string    `json:"remaining,omitempty"`
	Memories   int       `json:"memories"`
	Cover      string    `json:"cover,omitempty"`
	SharedWith int       `json:"shared_with"`
	CreatedAt  time.Time `json:"created_at"`
}

type memoryOut struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	MediaPath string                 `json:"media_path,omitempty"`
	MediaURL  string                 `json:"media_url,omitempty"`
	Duration  string                 `json:"duration,omitempty"`
	Context   *model.ContextSnapshot `json:"context,omitempty"`
	CreatedBy string                 `json:"created_by"`
	CreatedAt time.Time              `json:"created_at"`
}

type collaboratorOut struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

func toJourneyOut(v service.JourneyView) journeyOut {
	j := v.Journey
	out := journeyOut{
		ID:         j.ID.String(),
		Name:       j.Name,
		Emoji:      j.Emoji,
		State:      v.State.String(),
		Role:       v.Role.String(),
		Status:     string(j.Status),
		UnlockAt:   j.UnlockAt,
		Memories:   v.MemoryCount,
		Cover:      j.CoverImage,
		SharedWith: len(j.SharedWith),
		CreatedAt:  j.CreatedAt,
	}
	if v.Remaining > 0 {
		out.Remaining = humanize(v.Remaining)
	}
	return out
}

func toMemoryOut(m model.Memory) memoryOut {
	out := memoryOut{
		ID:        m.ID.String(),
		Type:      string(m.Type),
		Text:      m.Text,
		MediaPath: m.MediaPath,
		MediaURL:  m.MediaURL,
		Context:   m.Context,
		CreatedBy: m.CreatedBy.String(),
		CreatedAt: m.CreatedAt,
	}
	if m.Duration > 0 {
		out.Duration = m.Duration.Round(time.Second).String()
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printJourneys(views []service.JourneyView) error {
	outs := make([]journeyOut, 0, len(views))
	for _, v := range views {
		outs = append(outs, toJourneyOut(v))
	}
	if c.asJSON {
		return printJSON(c.out, outs)
	}
	if len(outs) == 0 {
		_, err := fmt.Fprintln(c.out, "no journeys")
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tROLE\tMEMORIES\tUNLOCKS")
	for _, o := range outs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", o.ID, label(o.Emoji, o.Name), o.State, o.Role, o.Memories, unlocks(o))
	}
	return tw.Flush()
}

func (c *cli) printJourney(v service.JourneyView) error {
	o := toJourneyOut(v)
	if c.asJSON {
		return printJSON(c.out, o)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", o.ID)
	fmt.Fprintf(tw, "name:\t%s\n", label(o.Emoji, o.Name))
	fmt.Fprintf(tw, "state:\t%s\n", o.State)
	fmt.Fprintf(tw, "role:\t%s\n", o.Role)
	fmt.Fprintf(tw, "unlocks:\t%s\n", unlocks(o))
	fmt.Fprintf(tw, "memories:\t%d\n", o.Memories)
	fmt.Fprintf(tw, "collaborators:\t%d\n", o.SharedWith)
	if o.Cover != "" {
		fmt.Fprintf(tw, "cover:\t%s\n", o.Cover)
	}
	return tw.Flush()
}

func (c *cli) printSaved(j *model.Journey) error {
	if c.asJSON {
		return printJSON(c.out, journeyOut{
			ID: j.ID.String(), Name: j.Name, Emoji: j.Emoji, Status: string(j.Status),
			UnlockAt: j.UnlockAt, Cover: j.CoverImage, SharedWith: len(j.SharedWith), CreatedAt: j.CreatedAt,
		})
	}
	_, err := fmt.Fprintf(c.out, "%s  %s  unlocks %s\n", j.ID, label(j.Emoji, j.Name), j.UnlockAt.Local().Format(time.RFC1123))
	return err
}

func (c *cli) printMemories(ms []model.Memory) error {
	outs := make([]memoryOut, 0, len(ms))
	for _, m := range ms {
		outs = append(outs, toMemoryOut(m))
	}
	if c.asJSON {
		return printJSON(c.out, outs)
	}
	if len(outs) == 0 {
		_, err := fmt.Fprintln(c.out, "no memories")
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tPLACE\tCONTENT")
	for _, o := range outs {
		place := ""
		if o.Context != nil {
			place = o.Context.PlaceName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Type, o.CreatedAt.Local().Format("2006-01-02 15:04"), place, content(o))
	}
	return tw.Flush()
}

func (c *cli) printMemory(m *model.Memory) error {
	o := toMemoryOut(*m)
	if c.asJSON {
		return printJSON(c.out, o)
	}
	_, err := fmt.Fprintf(c.out, "saved %s %s\n", o.Type, o.ID)
	return err
}

func (c *cli) printCollaborators(cs []service.Collaborator) error {
	outs := make([]collaboratorOut, 0, len(cs))
	for _, cb := range cs {
		outs = append(outs, collaboratorOut{ID: cb.ID.String(), Email: cb.Email})
	}
	if c.asJSON {
		return printJSON(c.out, outs)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL")
	for _, o := range outs {
		email := o.Email
		if email == "" {
			email = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", o.ID, email)
	}
	return tw.Flush()
}

func label(emoji, name string) string {
	if emoji == "" {
		return name
	}
	return emoji + " " + name
}

func unlocks(o journeyOut) string {
	if o.Remaining == "" {
		return "unlocked"
	}
	return "in " + o.Remaining
}

func content(o memoryOut) string {
	switch {
	case o.Text != "":
		return ellipsize(o.Text, 40)
	case o.Duration != "":
		return o.Duration + " " + o.MediaPath
	default:
		return o.MediaPath
	}
}

func ellipsize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// humanize renders a countdown with its two most significant units.
func humanize(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
