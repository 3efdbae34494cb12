package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/access"
	"github.com/siahsang/portfolio/internal/client"
	"github.com/siahsang/portfolio/internal/localstore"
	"github.com/siahsang/portfolio/internal/theme"
	"github.com/siahsang/portfolio/internal/utils/collectionutils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	errLoginRequired  = xerrors.Message("Not logged in, run `portfolio remote login` first")
	errAdminRequired  = xerrors.Message("This command needs an admin account")
	errSessionExpired = xerrors.Message("Session expired, please log in again")
)

// remoteColumns are the table columns of `remote list`.
var remoteColumns = map[string][]string{
	client.ResourceSkills:       {"_id", "name", "level"},
	client.ResourceCertificates: {"_id", "title", "organization", "date"},
	client.ResourceTestimonials: {"_id", "name", "company"},
	client.ResourceProjects:     {"_id", "name", "githubLink"},
	client.ResourceBlogs:        {"_id", "slug", "title", "author", "date"},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// remote holds what every `portfolio remote` subcommand shares.
type remote struct {
	apiURL    string
	storePath string
	store     *localstore.Store
	api       *client.Client
}

func newRemoteCmd() *cobra.Command {
	rc := &remote{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage a running portfolio through its API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rc.open()
		},
	}

	defaultAPI := os.Getenv("PORTFOLIO_API_BASE_URL")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:3000/api"
	}
	cmd.PersistentFlags().StringVar(&rc.apiURL, "api", defaultAPI, "API base URL")
	cmd.PersistentFlags().StringVar(&rc.storePath, "store", "", "local store file (defaults to the user config directory)")

	cmd.AddCommand(
		rc.loginCmd(),
		rc.logoutCmd(),
		rc.whoamiCmd(),
		rc.profileCmd(),
		rc.listCmd(),
		rc.getCmd(),
		rc.createCmd(),
		rc.updateCmd(),
		rc.deleteCmd(),
		rc.themeCmd(),
	)
	return cmd
}

func (rc *remote) open() error {
	path := rc.storePath
	if path == "" {
		p, err := localstore.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	store, err := localstore.Open(path)
	if err != nil {
		return err
	}
	api, err := client.New(rc.apiURL, client.WithTokenSource(store))
	if err != nil {
		return err
	}
	rc.store = store
	rc.api = api
	return nil
}

func (rc *remote) storedUser() *client.User {
	raw := rc.store.Get(localstore.KeyUser)
	if raw == "" {
		return nil
	}
	var user client.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

func (rc *remote) saveUser(token string, user client.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return xerrors.New(err)
	}
	rc.store.Set(localstore.KeyToken, token)
	rc.store.Set(localstore.KeyUser, string(raw))
	return rc.store.Save()
}

// requireAccess applies the same guard the site uses for its pages.
func (rc *remote) requireAccess(admin bool) error {
	role := ""
	if user := rc.storedUser(); user != nil {
		role = user.Role
	}
	decision := access.Decide(rc.store.Token() != "", role, admin)
	switch {
	case decision.Allowed:
		return nil
	case decision.Redirect == access.LoginPath:
		return errLoginRequired
	default:
		return errAdminRequired
	}
}

// apiError ends the stored session on 401 and spells out validation details.
func (rc *remote) apiError(err error) error {
	if client.IsStatus(err, http.StatusUnauthorized) {
		rc.store.Remove(localstore.KeyToken)
		rc.store.Remove(localstore.KeyUser)
		if saveErr := rc.store.Save(); saveErr != nil {
			return saveErr
		}
		return errSessionExpired
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		keys := slices.Sorted(maps.Keys(apiErr.Details))
		parts := collectionutils.Map(keys, func(k string) string { return k + " " + apiErr.Details[k] })
		return xerrors.Newf("%s: %s", apiErr.Error(), strings.Join(parts, "; "))
	}
	return err
}

func resourceArg(name string) error {
	if collectionutils.IndexOf(client.ResourceNames, func(n string) bool { return n == name }) < 0 {
		return xerrors.Newf("unknown resource %q, expected one of %s", name, strings.Join(client.ResourceNames, ", "))
	}
	return nil
}

func resourceArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return err
		}
		return resourceArg(args[0])
	}
}

func (rc *remote) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PORTFOLIO_PASSWORD")
			}
			resp, err := rc.api.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return rc.apiError(err)
			}
			if err := rc.saveUser(resp.Token, resp.User); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", resp.User.Username, resp.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or PORTFOLIO_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (rc *remote) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc.store.Remove(localstore.KeyToken)
			rc.store.Remove(localstore.KeyUser)
			if err := rc.store.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (rc *remote) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := rc.storedUser()
			if user == nil || rc.store.Token() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", user.Username, user.Email, user.Role)
			return nil
		},
	}
}

func (rc *remote) profileCmd() *cobra.Command {
	var email, password, avatar string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile, or change it with --email, --password or --avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.requireAccess(false); err != nil {
				return err
			}

			var (
				user *client.User
				err  error
			)
			if email == "" && password == "" && avatar == "" {
				user, err = rc.api.Profile(cmd.Context())
			} else {
				fields := []string{}
				if email != "" {
					fields = append(fields, "email="+email)
				}
				if password != "" {
					fields = append(fields, "password="+password)
				}
				files := []string{}
				if avatar != "" {
					files = append(files, "avatar="+avatar)
				}

				form, closeFiles, ferr := buildForm(fields, files)
				if ferr != nil {
					return ferr
				}
				defer closeFiles()
				user, err = rc.api.UpdateProfile(cmd.Context(), form)
			}
			if err != nil {
				return rc.apiError(err)
			}

			if err := rc.saveUser(rc.store.Token(), *user); err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&avatar, "avatar", "", "path of a new avatar image")
	return cmd
}

func (rc *remote) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <resource>",
		Short: "List a collection as a table",
		Args:  resourceArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			records, err := rc.api.Records(name).List(cmd.Context())
			if err != nil {
				return rc.apiError(err)
			}

			cols := collectionutils.GetOrDefault(remoteColumns, name, []string{"_id"})
			rows := collectionutils.Map(records, func(rec client.Record) []string {
				return collectionutils.Map(cols, func(col string) string { return cell(rec, col) })
			})

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(borderStyle).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				}).
				Headers(cols...).
				Rows(rows...)

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", len(records), name)
			return nil
		},
	}
}

func (rc *remote) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record; blog posts are rendered as markdown",
		Args:  resourceArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			if name != client.ResourceBlogs {
				rec, err := rc.api.Records(name).Get(cmd.Context(), id)
				if err != nil {
					return rc.apiError(err)
				}
				return printYAML(cmd.OutOrStdout(), rec)
			}

			b, err := rc.api.Blogs().Get(cmd.Context(), id)
			if err != nil {
				return rc.apiError(err)
			}
			doc := fmt.Sprintf("# %s\n\n*%s · %s*\n\n%s\n", b.Title, b.Author, b.Date.Format("Jan 2, 2006"), b.Content)
			if len(b.Tags) > 0 {
				doc += "\n`" + strings.Join(b.Tags, "` `") + "`\n"
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithStylePath(theme.Parse(rc.store.Get(localstore.KeyTheme)).String()),
				glamour.WithWordWrap(80),
			)
			if err != nil {
				return xerrors.New(err)
			}
			out, err := r.Render(doc)
			if err != nil {
				return xerrors.New(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func (rc *remote) createCmd() *cobra.Command {
	var fields, files []string

	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a record from --field and --file values",
		Example: `  portfolio remote create skills --field name=Go --field level=Expert --file image=go.png
  portfolio remote create projects --field name=CLI --field description=Tooling \
    --field githubLink=https://github.com/me/cli --file images=a.png --file images=b.png`,
		Args: resourceArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.requireAccess(true); err != nil {
				return err
			}
			form, closeFiles, err := buildForm(fields, files)
			if err != nil {
				return err
			}
			defer closeFiles()

			rec, err := rc.api.Records(args[0]).Create(cmd.Context(), form)
			if err != nil {
				return rc.apiError(err)
			}
			return printYAML(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "text field as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "file field as name=path (repeatable)")
	return cmd
}

func (rc *remote) updateCmd() *cobra.Command {
	var fields, files []string

	cmd := &cobra.Command{
		Use:   "update <resource> <id>",
		Short: "Update a record; fields that are not given keep their values",
		Args:  resourceArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.requireAccess(true); err != nil {
				return err
			}
			form, closeFiles, err := buildForm(fields, files)
			if err != nil {
				return err
			}
			defer closeFiles()

			rec, err := rc.api.Records(args[0]).Update(cmd.Context(), args[1], form)
			if err != nil {
				return rc.apiError(err)
			}
			return printYAML(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "text field as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "file field as name=path (repeatable)")
	return cmd
}

func (rc *remote) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record",
		Args:  resourceArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.requireAccess(true); err != nil {
				return err
			}
			if err := rc.api.Records(args[0]).Delete(cmd.Context(), args[1]); err != nil {
				return rc.apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", args[0], args[1])
			return nil
		},
	}
}

func (rc *remote) themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or set the theme used to render blog posts",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			current := theme.Parse(rc.store.Get(localstore.KeyTheme))
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), current)
				return nil
			}

			next := theme.Parse(args[0])
			if args[0] == "toggle" {
				next = current.Toggle()
			}
			rc.store.Set(localstore.KeyTheme, next.String())
			if err := rc.store.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}

// buildForm turns name=value and name=path pairs into a multipart form. The
// returned closer releases the opened files.
func buildForm(fields, files []string) (client.Form, func(), error) {
	form := client.Form{Fields: url.Values{}}
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, kv := range fields {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return form, closeAll, xerrors.Newf("invalid --field %q, expected name=value", kv)
		}
		form.Fields.Add(name, value)
	}

	for _, kv := range files {
		name, path, ok := strings.Cut(kv, "=")
		if !ok || name == "" || path == "" {
			closeAll()
			return form, func() {}, xerrors.Newf("invalid --file %q, expected name=path", kv)
		}
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return form, func() {}, xerrors.New(err)
		}
		opened = append(opened, f)
		form.Files = append(form.Files, client.FileField{Field: name, Filename: filepath.Base(path), Content: f})
	}
	return form, closeAll, nil
}

func cell(rec client.Record, key string) string {
	var s string
	switch v := rec[key].(type) {
	case nil:
	case string:
		s = v
	case []any:
		s = strings.Join(collectionutils.Map(v, func(item any) string { return fmt.Sprint(item) }), ", ")
	default:
		s = fmt.Sprint(v)
	}
	if key == "date" && len(s) > len("2006-01-02") {
		s = s[:len("2006-01-02")]
	}

	runes := []rune(s)
	if len(runes) > 40 {
		return string(runes[:39]) + "…"
	}
	return s
}

func printYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return xerrors.New(err)
	}
	_, err = w.Write(data)
	return err
}
