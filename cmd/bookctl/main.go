// Command bookctl is a terminal client for the booking API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/bookingflow"
	"github.com/iliyamo/resource-booking/internal/client"
)

type globals struct {
	api      string
	token    string
	email    string
	password string
	timeout  time.Duration
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "bookctl",
		Short:        "Browse availability and book resources",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.api, "api", envOr("BOOKCTL_API", "http://localhost:8080"), "API base URL")
	pf.StringVar(&g.token, "token", os.Getenv("BOOKCTL_TOKEN"), "access token")
	pf.StringVar(&g.email, "email", os.Getenv("BOOKCTL_EMAIL"), "log in with this email when no token is given")
	pf.StringVar(&g.password, "password", os.Getenv("BOOKCTL_PASSWORD"), "password for --email")
	pf.DurationVar(&g.timeout, "timeout", 15*time.Second, "overall request timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log flow events")

	root.AddCommand(newSlotsCmd(g), newBookingsCmd(g), newBookCmd(g))
	return root
}

func (g *globals) client() *client.Client {
	return client.New(g.api, client.WithToken(g.token))
}

func (g *globals) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func parseTime(flag, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be RFC 3339 (e.g. 2026-03-14T19:00:00Z): %w", flag, err)
	}
	return t, nil
}

func newSlotsCmd(g *globals) *cobra.Command {
	var (
		resourceID uint64
		after      string
		step       int
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List start candidates, or end candidates with --after",
		RunE: func(cmd *cobra.Command, args []string) error {
			var afterPtr *time.Time
			if after != "" {
				t, err := parseTime("after", after)
				if err != nil {
					return err
				}
				afterPtr = &t
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			list, err := g.client().Slots(ctx, resourceID, time.Duration(step)*time.Minute, afterPtr)
			if err != nil {
				return describe(err)
			}
			out := cmd.OutOrStdout()
			for _, t := range list {
				fmt.Fprintln(out, t.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&resourceID, "resource", 0, "resource id")
	cmd.Flags().StringVar(&after, "after", "", "chosen start; lists end candidates")
	cmd.Flags().IntVar(&step, "step", 0, "step in minutes (server default when 0)")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func newBookingsCmd(g *globals) *cobra.Command {
	var (
		resourceID uint64
		date       string
		tz         string
	)
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List the bookings of a resource on one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.UTC
			if tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("--tz: %w", err)
				}
				loc = l
			}
			day, err := time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			list, err := g.client().ListBookings(ctx, resourceID, day)
			if err != nil {
				return describe(err)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no bookings")
			}
			for _, b := range list {
				fmt.Fprintf(out, "#%d  %s - %s  user %d\n", b.ID,
					b.Start.In(loc).Format("15:04"), b.End.In(loc).Format("15:04"), b.UserID)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&resourceID, "resource", 0, "resource id")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for --date")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newBookCmd(g *globals) *cobra.Command {
	var (
		resourceID uint64
		start, end string
		step       int
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book [start, end) on a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseTime("start", start)
			if err != nil {
				return err
			}
			to, err := parseTime("end", end)
			if err != nil {
				return err
			}
			from, to = from.UTC(), to.UTC()
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			api := g.client()
			if g.token == "" && g.email != "" {
				if _, err := api.Login(ctx, g.email, g.password); err != nil {
					return fmt.Errorf("login: %w", describe(err))
				}
			}
			if step <= 0 {
				step = 30
			}
			flow := bookingflow.New(api, bookingflow.NewStore(), resourceID, from, time.Duration(step)*time.Minute, g.logger())
			defer flow.Close()
			return book(ctx, cmd.OutOrStdout(), flow, from, to)
		},
	}
	cmd.Flags().Uint64Var(&resourceID, "resource", 0, "resource id")
	cmd.Flags().StringVar(&start, "start", "", "start, RFC 3339")
	cmd.Flags().StringVar(&end, "end", "", "end, RFC 3339")
	cmd.Flags().IntVar(&step, "step", 30, "slot step in minutes")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func book(ctx context.Context, out io.Writer, flow *bookingflow.Flow, from, to time.Time) error {
	if err := flow.Load(ctx); err != nil {
		return describe(err)
	}
	if err := flow.ChooseStart(from); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := flow.ChooseEnd(to); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	b, err := flow.Submit(ctx)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(out, "booked #%d: resource %d, %s - %s\n", b.ID, b.ResourceID,
		b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
	return nil
}

// describe turns API errors into messages for the terminal.
func describe(err error) error {
	var ve *client.ValidationError
	var se *client.StatusError
	switch {
	case errors.Is(err, bookingflow.ErrUnavailable):
		return errors.New("that interval overlaps an existing booking")
	case errors.Is(err, client.ErrConflict):
		return errors.New("someone else booked an overlapping interval; pick another time")
	case errors.As(err, &ve):
		return fmt.Errorf("rejected: %s", ve.Reason)
	case errors.Is(err, client.ErrNotFound):
		return errors.New("resource not found")
	case errors.Is(err, client.ErrNetwork):
		return fmt.Errorf("cannot reach the API: %w", err)
	case errors.As(err, &se) && se.Code == 401:
		return errors.New("not signed in; pass --token or --email/--password")
	}
	return err
}
