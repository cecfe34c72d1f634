package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// current is built by the root pre-run hook; main closes it.
var current *app

var rootCmd = &cobra.Command{
	Use:           "microstudio",
	Short:         "Work with microStudio projects from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		a, err := newApp(cmd.Context(), verbose)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	Long:  "Log in with a nick and password. The issued token is stored so later commands resume the session.",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List your projects",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var selectCmd = &cobra.Command{
	Use:   "select <project-id>",
	Short: "Select the project file commands act on",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

var filesCmd = &cobra.Command{
	Use:   "files [folder]",
	Short: "List a project folder (ms, sprites, maps, sounds, music, assets, doc)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFiles,
}

var catCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a project file",
	Long:  "Print a project file such as ms/main.ms. Binary files are printed base64-encoded.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var writeCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Write a project file from --from or stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runWrite,
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List public plugins",
	Args:  cobra.NoArgs,
	RunE:  runCatalog(false),
}

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "List public libraries",
	Args:  cobra.NoArgs,
	RunE:  runCatalog(true),
}

var buildStatusCmd = &cobra.Command{
	Use:   "build-status <target>",
	Short: "Show the export build of the project for a target such as windows or android",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildStatus,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips to the service",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print achievement and stats pushes until interrupted",
	Long:  "Print achievement and stats pushes until interrupted. When TELEGRAM_BOT_TOKEN is set they are also forwarded to TELEGRAM_CHAT_ID.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug events to stderr")

	rootCmd.AddCommand(loginCmd, logoutCmd, projectsCmd, selectCmd, filesCmd, catCmd, writeCmd,
		pluginsCmd, librariesCmd, buildStatusCmd, pingCmd, watchCmd)

	loginCmd.Flags().String("nick", "", "Account nick (defaults to MICROSTUDIO_NICK)")
	loginCmd.Flags().String("password", "", "Account password (defaults to MICROSTUDIO_PASSWORD, prompted if unset)")

	projectsCmd.Flags().Bool("refresh", false, "Bypass the cached list")

	for _, c := range []*cobra.Command{filesCmd, catCmd, writeCmd, buildStatusCmd} {
		c.Flags().Int64P("project", "p", 0, "Project id (defaults to the selected project)")
	}
	for _, c := range []*cobra.Command{projectsCmd, filesCmd, pluginsCmd, librariesCmd, buildStatusCmd} {
		c.Flags().StringP("output", "o", "", "Output format (json)")
	}

	writeCmd.Flags().String("from", "", "Read content from this local file instead of stdin")
	writeCmd.Flags().StringToString("property", nil, "File properties as key=value pairs")

	pingCmd.Flags().IntP("count", "c", 1, "Number of pings")
}

func runLogin(cmd *cobra.Command, args []string) error {
	nick, _ := cmd.Flags().GetString("nick")
	password, _ := cmd.Flags().GetString("password")
	s := current.studioCmd()

	if nick == "" {
		nick = s.fallback.Nick
	}
	if nick == "" {
		var err error
		nick, err = pterm.DefaultInteractiveTextInput.Show("Nick")
		if err != nil {
			return err
		}
	}
	if password == "" && s.fallback.Password == "" {
		var err error
		password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
		if err != nil {
			return err
		}
	}
	return s.Login(cmd.Context(), LoginInput{Nick: strings.TrimSpace(nick), Password: password})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return current.studioCmd().Logout(cmd.Context())
}

func runProjects(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	output, _ := cmd.Flags().GetString("output")
	return current.studioCmd().Projects(cmd.Context(), ProjectsInput{Refresh: refresh, Output: output})
}

func runSelect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid project id %q", args[0])
	}
	return current.studioCmd().Select(cmd.Context(), SelectInput{ID: id})
}

func runFiles(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetInt64("project")
	output, _ := cmd.Flags().GetString("output")
	folder := "ms"
	if len(args) == 1 {
		folder = args[0]
	}
	return current.studioCmd().Files(cmd.Context(), FilesInput{Project: project, Folder: folder, Output: output})
}

func runCat(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetInt64("project")
	return current.studioCmd().Cat(cmd.Context(), CatInput{Project: project, File: args[0]})
}

func runWrite(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetInt64("project")
	from, _ := cmd.Flags().GetString("from")
	props, _ := cmd.Flags().GetStringToString("property")

	var content []byte
	var err error
	if from != "" {
		content, err = os.ReadFile(from)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	return current.studioCmd().Write(cmd.Context(), WriteInput{
		Project:    project,
		File:       args[0],
		Content:    string(content),
		Properties: props,
	})
}

func runCatalog(libraries bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return current.studioCmd().Catalog(cmd.Context(), CatalogInput{Libraries: libraries, Output: output})
	}
}

func runBuildStatus(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetInt64("project")
	output, _ := cmd.Flags().GetString("output")
	return current.studioCmd().BuildStatus(cmd.Context(), BuildStatusInput{Project: project, Target: args[0], Output: output})
}

func runPing(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	return current.studioCmd().Ping(cmd.Context(), PingInput{Count: count})
}

func runWatch(cmd *cobra.Command, args []string) error {
	notifier, err := current.notifier()
	if err != nil {
		return err
	}
	return WatchCmd{studio: current.studioCmd(), notifier: notifier}.Watch(cmd.Context())
}
