package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venuepass/internal/app"
	"venuepass/internal/domain"
	"venuepass/internal/eventpage"
)

const timeLayout = "Mon 02 Jan 2006 15:04 MST"

func eventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Inspect one event"}
	ev.AddCommand(eventShowCmd())
	ev.AddCommand(eventWatchCmd())
	return ev
}

func eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show an event with its status and countdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				page := a.EventPage(args[0])
				defer page.Close()
				if err := page.Load(ctx); err != nil {
					return loadFailure(page, err)
				}
				v := page.View()
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), struct {
						eventpage.View
						Event *domain.EventData `json:"event,omitempty"`
					}{View: v, Event: wireOrNil(v.Event)})
				}
				renderEvent(cmd, v)
				return nil
			})
		},
	}
}

func eventWatchCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch <event-id>",
		Short: "Print the status and countdown on every tick until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				page := a.EventPage(args[0])
				defer page.Close()
				if err := page.Load(ctx); err != nil {
					return loadFailure(page, err)
				}
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}
				out := cmd.OutOrStdout()
				asJSON := viper.GetBool("json")
				err := page.StartCountdown(ctx, func(tk eventpage.Tick) {
					if asJSON {
						_ = printJSON(out, tk)
						return
					}
					fmt.Fprintf(out, "%s  %-24s %s\n", tk.At.Local().Format("15:04:05"), tk.Status.Headline(), tk.Countdown)
				})
				if err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func loadFailure(page *eventpage.Page, err error) error {
	if msg := page.LoadError(); msg != "" && errors.Is(err, eventpage.ErrEventNotLoaded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}

func wireOrNil(ev *domain.Event) *domain.EventData {
	if ev == nil {
		return nil
	}
	data := domain.EventToWire(*ev)
	return &data
}

func renderEvent(cmd *cobra.Command, v eventpage.View) {
	out := cmd.OutOrStdout()
	ev := v.Event
	fmt.Fprintf(out, "%s\n%s\n", ev.Name, v.Headline)
	if ev.Description != "" {
		fmt.Fprintf(out, "%s\n", ev.Description)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendRows([]table.Row{
		{"Status", string(v.Status)},
		{"Registration closes in", v.Countdown},
		{"Event", fmt.Sprintf("%s → %s", ev.StartTime.Local().Format(timeLayout), ev.EndTime.Local().Format(timeLayout))},
		{"Registration", fmt.Sprintf("%s → %s", ev.RegistrationStart.Local().Format(timeLayout), ev.RegistrationEnd.Local().Format(timeLayout))},
		{"Spots", fmt.Sprintf("%d of %d available", ev.AvailableSpots, ev.Capacity)},
	})
	if len(ev.Images) > 0 {
		tw.AppendRow(table.Row{"Images", strings.Join(ev.Images, "\n")})
	}
	tw.Render()
}

func eventsCmd() *cobra.Command {
	evs := &cobra.Command{Use: "events", Short: "Browse the event listing"}
	evs.AddCommand(eventsListCmd())
	return evs
}

func eventsListCmd() *cobra.Command {
	var (
		page    int
		section string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming, ongoing and past events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validSection(section) {
				return fmt.Errorf("--section must be one of all, upcoming, ongoing, past")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.Client.ListEvents(ctx)
				if err != nil {
					a.Logger.Warn("list events failed", "error", err)
					return errors.New(eventpage.MsgConnectFailed)
				}
				if !resp.Success || resp.Data == nil {
					return fmt.Errorf("failed to load events: %s", resp.Message)
				}
				events, skipped := eventpage.DecodeEvents(*resp.Data)
				if skipped > 0 {
					a.Logger.Warn("skipped events with unreadable timestamps", "count", skipped)
				}
				buckets := eventpage.Categorize(time.Now(), events)
				perPage := a.Config.Listing.PerPage
				sections := []struct {
					name   string
					events []domain.Event
				}{
					{"upcoming", buckets.Upcoming},
					{"ongoing", buckets.Ongoing},
					{"past", buckets.Past},
				}
				if viper.GetBool("json") {
					res := map[string]any{}
					for _, s := range sections {
						if section != "all" && section != s.name {
							continue
						}
						visible, more := eventpage.Paginate(s.events, page, perPage)
						items := make([]domain.EventData, 0, len(visible))
						for _, ev := range visible {
							items = append(items, domain.EventToWire(ev))
						}
						res[s.name] = map[string]any{"items": items, "has_more": more}
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				out := cmd.OutOrStdout()
				for _, s := range sections {
					if section != "all" && section != s.name {
						continue
					}
					visible, more := eventpage.Paginate(s.events, page, perPage)
					fmt.Fprintf(out, "%s (%d)\n", strings.ToUpper(s.name[:1])+s.name[1:], len(s.events))
					tw := table.NewWriter()
					tw.SetOutputMirror(out)
					tw.AppendHeader(table.Row{"ID", "Name", "Starts", "Ends", "Spots"})
					for _, ev := range visible {
						tw.AppendRow(table.Row{ev.ID, ev.Name, ev.StartTime.Local().Format(timeLayout), ev.EndTime.Local().Format(timeLayout), fmt.Sprintf("%d/%d", ev.AvailableSpots, ev.Capacity)})
					}
					tw.Render()
					if more {
						fmt.Fprintf(out, "more %s events: --page %d\n", s.name, page+1)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "how many pages of each section to show")
	cmd.Flags().StringVar(&section, "section", "all", "all, upcoming, ongoing or past")
	return cmd
}

func validSection(s string) bool {
	switch s {
	case "all", "upcoming", "ongoing", "past":
		return true
	}
	return false
}
