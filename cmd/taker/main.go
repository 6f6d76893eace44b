// Command taker runs a timed practice test in the terminal against a
// qbtusul server and prints the graded report.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/client"
	"github.com/Batpurev0828/qbtusul/internal/logger"
	"github.com/Batpurev0828/qbtusul/internal/session"
	"github.com/Batpurev0828/qbtusul/internal/timer"
)

func main() {
	server := pflag.String("server", envOr("QBTUSUL_SERVER", "http://localhost:8080"), "API base URL")
	email := pflag.String("email", os.Getenv("QBTUSUL_EMAIL"), "account email")
	password := pflag.String("password", os.Getenv("QBTUSUL_PASSWORD"), "account password")
	testID := pflag.String("test", "", "test id; omit to list published tests")
	env := pflag.String("env", envOr("APP_ENV", "local"), "log environment")
	pflag.Parse()

	log, err := logger.New(*env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*server)
	if *testID == "" {
		if err := listTests(ctx, c, os.Stdout); err != nil {
			log.Fatal("list tests", zap.Error(err))
		}
		return
	}
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required to take a test")
	}
	if _, err := c.Login(ctx, *email, *password); err != nil {
		log.Fatal("login failed", zap.Error(err))
	}

	t, err := c.GetTest(ctx, *testID)
	if err != nil {
		log.Fatal("load test", zap.String("test_id", *testID), zap.Error(err))
	}

	r := &runner{
		out:   os.Stdout,
		c:     c,
		log:   log,
		email: *email,
		sess:  session.New(t, time.Now().UTC(), c),
	}
	if err := r.run(ctx, os.Stdin, clock.New(), t.TimeLimitMinutes); err != nil {
		log.Fatal("session ended", zap.Error(err))
	}
}

func listTests(ctx context.Context, c *client.Client, out io.Writer) error {
	list, err := c.ListTests(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "no published tests")
		return nil
	}
	tag := ""
	for _, s := range list {
		if s.Tag != tag {
			tag = s.Tag
			fmt.Fprintf(out, "\n[%s]\n", tag)
		}
		fmt.Fprintf(out, "  %s  %s (%s) %d MC / %d FR, %g pts, %s\n",
			s.ID, s.Title, s.Subject, s.MCQuestionCount, s.FRQuestionCount, s.TotalPoints, limitLabel(s.TimeLimitMinutes))
	}
	return nil
}

type runner struct {
	out   io.Writer
	c     *client.Client
	log   *zap.Logger
	email string
	sess  *session.Session

	// expired is set once time runs out; answers are frozen from then on.
	expired bool
}

func (r *runner) run(ctx context.Context, in io.Reader, clk clock.Clock, limitMinutes int) error {
	timeUp := make(chan struct{})
	var lastBand timer.Band
	ctl := timer.New(clk, limitMinutes, r.sess.StartedAt(), func() { close(timeUp) },
		timer.WithOnTick(func(left int, band timer.Band) {
			if band != lastBand || (left > 0 && left%60 == 0 && band != timer.Normal) {
				fmt.Fprintf(r.out, "  [%s left]\n", timer.Format(left))
			}
			lastBand = band
		}))
	ctl.Start()
	defer ctl.Stop()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	printHelp(r.out)
	r.show(ctl)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeUp:
			timeUp = nil
			r.expired = true
			fmt.Fprintln(r.out, "time is up, submitting your answers")
			done, err := r.submit(ctx)
			if done {
				return nil
			}
			if r.sess.Phase().Terminal() {
				return err
			}
			r.log.Warn("submission at time-up failed", zap.Error(err))
			fmt.Fprintf(r.out, "  ! %v\n  answers are frozen; type submit to send them again\n", err)
		case line, ok := <-lines:
			if !ok {
				return errors.New("input closed before submission")
			}
			done, err := r.handle(ctx, ctl, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(r.out, "  ! %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

// handle runs one command. done is true once the attempt is recorded.
func (r *runner) handle(ctx context.Context, ctl *timer.Controller, line string) (done bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	cmd = strings.ToLower(cmd)

	if r.expired && !afterDeadline[cmd] {
		return false, errors.New("time is up; only submit, login, status and help are accepted")
	}
	switch cmd {
	case "", "show":
	case "n", "next":
		err = r.sess.Navigate(session.Next)
	case "p", "prev":
		err = r.sess.Navigate(session.Prev)
	case "j", "jump":
		err = r.jump(arg)
	case "a", "ans":
		err = r.answer(arg)
	case "clear":
		err = r.clear()
	case "status":
		answered, total := r.sess.AnsweredCount()
		fmt.Fprintf(r.out, "  answered %d of %d, %s\n", answered, total, remainingLabel(ctl))
		return false, nil
	case "s", "submit":
		return r.submit(ctx)
	case "login":
		if _, err := r.c.Login(ctx, r.email, arg); err != nil {
			return false, fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintln(r.out, "  signed in again")
		return false, nil
	case "h", "help":
		printHelp(r.out)
		return false, nil
	case "q", "quit":
		return false, errors.New("use submit to finish; unsaved answers are lost on exit")
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	if err == nil {
		r.show(ctl)
	}
	return false, err
}

// afterDeadline lists the commands that still work once time is up.
var afterDeadline = map[string]bool{
	"": true, "show": true, "status": true, "h": true, "help": true,
	"s": true, "submit": true, "login": true,
}

func (r *runner) jump(arg string) error {
	secName, num, _ := strings.Cut(arg, " ")
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return errors.New("usage: jump mc|fr <number>")
	}
	sec := session.SectionMC
	if strings.EqualFold(secName, "fr") {
		sec = session.SectionFR
	}
	return r.sess.JumpTo(sec, n-1)
}

func (r *runner) answer(arg string) error {
	pos := r.sess.Position()
	if pos.Section == session.SectionFR {
		return r.sess.SetFreeResponse(pos.Index, arg)
	}
	opt, err := optionIndex(arg)
	if err != nil {
		return err
	}
	return r.sess.SelectOption(pos.Index, opt)
}

func (r *runner) clear() error {
	pos := r.sess.Position()
	if pos.Section == session.SectionFR {
		return r.sess.SetFreeResponse(pos.Index, "")
	}
	return r.sess.ClearOption(pos.Index)
}

func (r *runner) submit(ctx context.Context) (bool, error) {
	id, err := r.sess.Submit(ctx)
	switch {
	case errors.Is(err, session.ErrSubmissionInFlight):
		return false, nil
	case err != nil && r.sess.Phase() == session.Failed:
		return false, fmt.Errorf("submission rejected, this attempt cannot be saved: %w", err)
	case apierr.KindOf(err) == apierr.Unauthorized:
		return false, fmt.Errorf("your login has expired; run login <password>, then submit: %w", err)
	case err != nil:
		return false, fmt.Errorf("submission failed, try again: %w", err)
	}
	r.report(ctx, id)
	return true, nil
}

func (r *runner) report(ctx context.Context, attemptID string) {
	rec, err := r.c.GetAttempt(ctx, attemptID)
	if err != nil {
		fmt.Fprintf(r.out, "submitted as %s; could not load the report: %v\n", attemptID, err)
		return
	}
	printReport(r.out, rec)
}

func (r *runner) show(ctl *timer.Controller) {
	q, ok := r.sess.Current()
	if !ok {
		fmt.Fprintln(r.out, "this test has no questions; type submit to finish")
		return
	}
	printQuestion(r.out, q, remainingLabel(ctl))
}

func remainingLabel(ctl *timer.Controller) string {
	if !ctl.Enabled() {
		return "no time limit"
	}
	return timer.Format(ctl.Remaining()) + " left"
}

func limitLabel(minutes int) string {
	if minutes <= 0 {
		return "untimed"
	}
	return fmt.Sprintf("%d min", minutes)
}

// optionIndex accepts a letter (A, b) or a 1-based number.
func optionIndex(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		return n - 1, nil
	}
	if len(arg) == 1 {
		ch := strings.ToUpper(arg)[0]
		if ch >= 'A' && ch <= 'Z' {
			return int(ch - 'A'), nil
		}
	}
	return 0, fmt.Errorf("not an option: %q", arg)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
