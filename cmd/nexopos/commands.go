package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nexoai/pos-client/internal/adapters/devauth"
	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	"github.com/nexoai/pos-client/internal/domain/nav"
)

type loginOptions struct {
	Email    string
	Password string
}

type registerOptions struct {
	Email         string
	Password      string
	BusinessName  string
	OwnerName     string
	OwnerLastName string
	Phone         string
}

type canOptions struct {
	Any         bool
	All         bool
	Permissions []domainauth.Permission
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (defaults to NEXOPOS_PASSWORD)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Password == "" {
		opts.Password = os.Getenv("NEXOPOS_PASSWORD")
	}
	return opts, nil
}

func parseRegisterFlags(args []string) (registerOptions, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts registerOptions
	fs.StringVar(&opts.Email, "email", "", "Owner email (required)")
	fs.StringVar(&opts.Password, "password", "", "Owner password (defaults to NEXOPOS_PASSWORD)")
	fs.StringVar(&opts.BusinessName, "business", "", "Business name (required)")
	fs.StringVar(&opts.OwnerName, "name", "", "Owner first name")
	fs.StringVar(&opts.OwnerLastName, "lastname", "", "Owner last name")
	fs.StringVar(&opts.Phone, "phone", "", "Owner phone number, digits only")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Password == "" {
		opts.Password = os.Getenv("NEXOPOS_PASSWORD")
	}
	return opts, nil
}

func parseCanFlags(args []string) (canOptions, error) {
	fs := flag.NewFlagSet("can", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts canOptions
	fs.BoolVar(&opts.Any, "any", false, "Succeed when any listed permission is granted")
	fs.BoolVar(&opts.All, "all", false, "Succeed only when every listed permission is granted (default for several)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Any && opts.All {
		return opts, errors.New("-any and -all are mutually exclusive")
	}
	if fs.NArg() == 0 {
		return opts, errors.New("at least one permission is required")
	}
	for _, raw := range fs.Args() {
		p, ok := domainauth.ParsePermission(raw)
		if !ok {
			return opts, fmt.Errorf("unknown permission %q", raw)
		}
		opts.Permissions = append(opts.Permissions, p)
	}
	return opts, nil
}

func runLogin(ctx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	user, err := ctx.Runtime.Manager.Login(ctx.Ctx, opts.Email, opts.Password)
	if err != nil {
		return err
	}
	return writef(ctx.Out, "Signed in as %s (%s)\n", user.Email, user.Role)
}

func runRegister(ctx *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args)
	if err != nil {
		return err
	}

	var phone int64
	if opts.Phone != "" {
		phone, err = strconv.ParseInt(opts.Phone, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid phone number %q", opts.Phone)
		}
	}

	user, err := ctx.Runtime.Manager.Register(ctx.Ctx, domainauth.Registration{
		Email:         opts.Email,
		Password:      opts.Password,
		BusinessName:  opts.BusinessName,
		OwnerName:     opts.OwnerName,
		OwnerLastName: opts.OwnerLastName,
		PhoneNumber:   phone,
	})
	if err != nil {
		return err
	}
	return writef(ctx.Out, "Registered %s and signed in as %s (%s)\n", opts.BusinessName, user.Email, user.Role)
}

func runLogout(ctx *commandContext, _ []string) error {
	if err := ctx.Runtime.Manager.Logout(ctx.Ctx); err != nil {
		return err
	}
	return writeln(ctx.Out, "Signed out")
}

func runWhoAmI(ctx *commandContext, _ []string) error {
	user, ok := ctx.Runtime.Manager.User()
	if !ok {
		return writeln(ctx.Out, "Not signed in")
	}

	w := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Name", user.Name},
		{"Email", user.Email},
		{"Role", string(user.Role)},
		{"Point of sale", user.PointOfSaleID},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("write %s: %w", strings.ToLower(row[0]), err)
		}
	}

	perms := ctx.Runtime.Manager.Permissions()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	if err := writef(w, "Permissions\t%s\n", strings.Join(names, ", ")); err != nil {
		return fmt.Errorf("write permissions: %w", err)
	}
	return w.Flush()
}

func runCan(ctx *commandContext, args []string) error {
	opts, err := parseCanFlags(args)
	if err != nil {
		return err
	}

	mgr := ctx.Runtime.Manager
	var allowed bool
	switch {
	case opts.Any:
		allowed = mgr.HasAnyPermission(opts.Permissions)
	case len(opts.Permissions) == 1:
		allowed = mgr.HasPermission(opts.Permissions[0])
	default:
		allowed = mgr.HasAllPermissions(opts.Permissions)
	}

	if !allowed {
		if err := writeln(ctx.Out, "denied"); err != nil {
			return err
		}
		return errDenied
	}
	return writeln(ctx.Out, "allowed")
}

func runTabs(ctx *commandContext, _ []string) error {
	tabs := nav.VisibleTabs(nav.DefaultTabs(), ctx.Runtime.Manager)

	w := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Tab\tTitle\tIcon"); err != nil {
		return fmt.Errorf("write tabs header: %w", err)
	}
	for _, t := range tabs {
		if err := writef(w, "%s\t%s\t%s\n", t.Name, t.Title, t.Icon); err != nil {
			return fmt.Errorf("write tab %q: %w", t.Name, err)
		}
	}
	return w.Flush()
}

func runGet(ctx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: nexopos get <path>")
	}

	var body []byte
	if err := ctx.Runtime.Client.Get(ctx.Ctx, args[0], &body); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	return writeln(ctx.Out, string(body))
}

func runMockUsers(ctx *commandContext, _ []string) error {
	w := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Key\tEmail\tBackend role\tName"); err != nil {
		return fmt.Errorf("write mock users header: %w", err)
	}
	for _, u := range devauth.DefaultUsers() {
		if err := writef(w, "%s\t%s\t%s\t%s\n", u.Key, u.User.Email, u.User.Role, u.User.DisplayName()); err != nil {
			return fmt.Errorf("write mock user %q: %w", u.Key, err)
		}
	}
	return w.Flush()
}
