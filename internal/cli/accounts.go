package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/service"
)

// passwordEnv lets scripts pass a password without putting it on the
// command line.
const passwordEnv = "CAMPUSLIB_PASSWORD"

func passwordFlag(value string) string {
	if value != "" {
		return value
	}
	return os.Getenv(passwordEnv)
}

func (a *App) register(ctx context.Context, args []string) error {
	fs, p := a.flags("register", "")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (or set "+passwordEnv+")")
	role := fs.String("role", string(domain.RoleStudent), "admin, librarian or student")
	if err := parse(fs, args); err != nil {
		return err
	}

	pw := passwordFlag(*password)
	user, err := a.Users.Register(ctx, service.RegisterRequest{
		Email:           *email,
		Password:        pw,
		ConfirmPassword: pw,
		Role:            *role,
	})
	if err != nil {
		return err
	}
	return p.result(user, func(w io.Writer) {
		fmt.Fprintf(w, "registered %s as %s\n", user.Email, user.Role)
	})
}

func (a *App) login(ctx context.Context, args []string) error {
	fs, p := a.flags("login", "")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (or set "+passwordEnv+")")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"email": *email}); err != nil {
		return err
	}

	user, err := a.Users.Authenticate(ctx, *email, passwordFlag(*password))
	if err != nil {
		return err
	}
	return p.result(user, func(w io.Writer) {
		fmt.Fprintf(w, "authenticated %s (%s), may %s\n", user.Email, user.Role, permissions(user))
	})
}

// permissions describes what the role lets an account do.
func permissions(u *domain.User) string {
	var perms []string
	if u.IsStudent() {
		perms = append(perms, "borrow")
	}
	if u.CanManageInventory() {
		perms = append(perms, "manage inventory")
	}
	if len(perms) == 0 {
		return "do nothing"
	}
	return strings.Join(perms, ", ")
}

func (a *App) inactive(ctx context.Context, args []string) error {
	fs, p := a.flags("inactive", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	users, err := a.Users.InactiveUsers(ctx)
	if err != nil {
		return err
	}
	return p.result(users, func(w io.Writer) {
		if len(users) == 0 {
			fmt.Fprintln(w, "no inactive accounts")
			return
		}
		rows := make([][]string, 0, len(users))
		for _, u := range users {
			last := "never"
			if u.LastBorrowDate != nil {
				last = domain.FormatDate(*u.LastBorrowDate)
			}
			rows = append(rows, []string{u.Email, string(u.Role), last, domain.FormatDate(u.CreatedAt)})
		}
		p.table([]string{"EMAIL", "ROLE", "LAST BORROW", "CREATED"}, rows)(w)
	})
}

func (a *App) remind(ctx context.Context, args []string) error {
	fs, p := a.flags("remind", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	report, err := a.Reminders.SendFineReminders(ctx)
	if err != nil {
		return err
	}
	return p.result(report, func(w io.Writer) {
		fmt.Fprintf(w, "sent %d of %d fine reminders\n", report.Sent, report.Recipients)
		for _, email := range report.Failed {
			fmt.Fprintf(w, "failed: %s\n", email)
		}
	})
}
