package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"venuepass/internal/app"
	"venuepass/internal/wizard"
)

const maxAttempts = 3

func registerCmd() *cobra.Command {
	var eventID, phone, name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register for an event whose registration is open",
		Long: `Register walks the registration wizard: phone first, then name and email
only when the phone is new. Values not given as flags are prompted on stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventID == "" {
				return fmt.Errorf("--event required")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				page := a.EventPage(eventID)
				defer page.Close()
				if err := page.Load(ctx); err != nil {
					return loadFailure(page, err)
				}
				w, err := page.Registration()
				if err != nil {
					return err
				}
				p := prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
				s, err := runWizard(ctx, w, p, registrationInput{Phone: phone, Name: name, Email: email})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"event_id":   s.EventID,
						"phone":      wizard.MaskPhone(s.Phone),
						"known_user": s.KnownIdentity != nil,
						"message":    s.Outcome.Message,
					})
				}
				greeting := "You're registered"
				if s.KnownIdentity != nil && s.KnownIdentity.Name != "" {
					greeting = "Welcome back, " + s.KnownIdentity.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s. %s\n", greeting, s.Outcome.Message)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().StringVar(&phone, "phone", "", "10-digit phone number")
	cmd.Flags().StringVar(&name, "name", "", "full name (new users only)")
	cmd.Flags().StringVar(&email, "email", "", "email (new users only)")
	return cmd
}

type registrationInput struct {
	Phone string
	Name  string
	Email string
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// ask returns preset when set, otherwise reads one line after printing label.
func (p prompter) ask(label, preset string) (string, bool, error) {
	if preset != "" {
		return preset, false, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", true, fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), true, nil
}

// runWizard drives w to Success. Rejected prompted values are asked again,
// up to maxAttempts rejections in total; rejected flag values end the run.
func runWizard(ctx context.Context, w *wizard.Wizard, p prompter, in registrationInput) (wizard.Session, error) {
	s := w.Session()
	rejected := 0
	for s.Step != wizard.Success {
		var (
			prompted bool
			err      error
		)
		switch s.Step {
		case wizard.PhoneEntry:
			var phone string
			if phone, prompted, err = p.ask("Phone number", in.Phone); err != nil {
				return s, err
			}
			s, err = w.SubmitPhone(ctx, phone)
		case wizard.DetailsCollection:
			var name, email string
			var pn, pe bool
			if name, pn, err = p.ask("Name", in.Name); err != nil {
				return s, err
			}
			if email, pe, err = p.ask("Email", in.Email); err != nil {
				return s, err
			}
			prompted = pn || pe
			s, err = w.SubmitDetails(ctx, name, email)
		}
		if err == nil {
			continue
		}
		if !prompted || errors.Is(err, wizard.ErrClosed) || ctx.Err() != nil {
			if s.Outcome.Error != "" {
				return s, errors.New(s.Outcome.Error)
			}
			return s, err
		}
		rejected++
		if rejected >= maxAttempts {
			return s, fmt.Errorf("giving up after %d attempts: %s", maxAttempts, s.Outcome.Error)
		}
		fmt.Fprintf(p.out, "%s\n", s.Outcome.Error)
	}
	return s, nil
}
