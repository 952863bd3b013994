package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taxilian/tplan/internal/format"
	"github.com/taxilian/tplan/internal/model"
	"github.com/taxilian/tplan/internal/nav"
	"github.com/taxilian/tplan/internal/perm"
	"github.com/taxilian/tplan/internal/prefs"
)

var lsCmd = &cobra.Command{
	Use:   "ls [id]",
	Short: "List the children of an item (the root collection by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, log.Default())
		if err != nil {
			return err
		}

		locator := cfg.Client.RootLocator
		if len(args) == 1 {
			id, err := model.ParseItemID(args[0])
			if err != nil {
				return err
			}
			locator = nav.ChildLocator(id)
		}
		items, err := client.List(commandContext(cmd), locator)
		if err != nil {
			return err
		}
		items = visibleItems(items)

		if flagYAML {
			return printItemsYAML(os.Stdout, items)
		}
		printItemsTable(os.Stdout, items, time.Now())
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark an item complete (progress 100)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateItem(cmd, args[0], model.ProgressPatch(100))
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <id>",
	Short: "Mark an item not started (progress 0)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateItem(cmd, args[0], model.ProgressPatch(0))
	},
}

var colorCmd = &cobra.Command{
	Use:   "color <id> [color]",
	Short: "Set an item's color tag, or clear it when no color is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		color := ""
		if len(args) == 2 {
			color = strings.TrimSpace(args[1])
		}
		return updateItem(cmd, args[0], model.ColorPatch(color))
	},
}

func updateItem(cmd *cobra.Command, arg string, patch model.Patch) error {
	id, err := model.ParseItemID(arg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, log.Default())
	if err != nil {
		return err
	}
	if err := client.Update(commandContext(cmd), id, patch); err != nil {
		return err
	}
	fmt.Printf("Updated %s\n", id)
	return nil
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := model.ParseItemID(args[0])
		if err != nil {
			return err
		}
		if !flagYes && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete %s?", id)) {
			fmt.Println("Cancelled")
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, log.Default())
		if err != nil {
			return err
		}
		if err := client.Delete(commandContext(cmd), id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// delegationFor loads the managers of the item named by arg.
func delegationFor(cmd *cobra.Command, arg string) (*perm.Delegation, error) {
	id, err := model.ParseItemID(arg)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg, log.Default())
	if err != nil {
		return nil, err
	}
	d := perm.New(client, id, log.Default())
	if _, err := d.ListManagers(commandContext(cmd)); err != nil {
		return nil, err
	}
	return d, nil
}

var managersCmd = &cobra.Command{
	Use:   "managers <id>",
	Short: "List the users an item is delegated to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := delegationFor(cmd, args[0])
		if err != nil {
			return err
		}
		printManagers(os.Stdout, d.Managers())
		return nil
	},
}

type capabilityFlag struct {
	name  string
	usage string
	field func(p *model.CapabilityPatch) **bool
}

var capabilityFlags = []capabilityFlag{
	{"edit", "Allow editing", func(p *model.CapabilityPatch) **bool { return &p.CanEdit }},
	{"finish", "Allow completing", func(p *model.CapabilityPatch) **bool { return &p.CanFinish }},
	{"add", "Allow adding children", func(p *model.CapabilityPatch) **bool { return &p.CanAdd }},
	{"delete", "Allow deleting", func(p *model.CapabilityPatch) **bool { return &p.CanDelete }},
	{"add-member", "Allow adding managers", func(p *model.CapabilityPatch) **bool { return &p.CanAddMember }},
	{"remove-member", "Allow removing managers", func(p *model.CapabilityPatch) **bool { return &p.CanRemoveMember }},
}

// capabilityPatchFromFlags includes only the flags given on the command line.
func capabilityPatchFromFlags(cmd *cobra.Command) (model.CapabilityPatch, error) {
	var p model.CapabilityPatch
	for _, c := range capabilityFlags {
		if !cmd.Flags().Changed(c.name) {
			continue
		}
		v, err := cmd.Flags().GetBool(c.name)
		if err != nil {
			return p, err
		}
		*c.field(&p) = &v
	}
	return p, nil
}

var grantCmd = &cobra.Command{
	Use:   "grant <id> <userId>",
	Short: "Change what a manager may do on an item",
	Long: `Change the grants of an existing manager. Only the flags given are sent.

Example:
  tplan grant 12 7 --edit --delete=false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		patch, err := capabilityPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to change: pass at least one of --edit, --finish, --add, --delete, --add-member, --remove-member")
		}

		d, err := delegationFor(cmd, args[0])
		if err != nil {
			return err
		}
		mgr, ok := findManager(d.Managers(), userID)
		if !ok {
			return fmt.Errorf("%w: user %d", perm.ErrUnknownManager, userID)
		}
		if err := d.GrantOrUpdate(commandContext(cmd), mgr.PermissionID, userID, patch); err != nil {
			return err
		}
		mgr, _ = findManager(d.Managers(), userID)
		printManagers(os.Stdout, []model.Manager{mgr})
		return nil
	},
}

func findManager(managers []model.Manager, userID int64) (model.Manager, bool) {
	for _, m := range managers {
		if m.User.ID == userID {
			return m, true
		}
	}
	return model.Manager{}, false
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <id> <userId>",
	Short: "Remove a manager from an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		d, err := delegationFor(cmd, args[0])
		if err != nil {
			return err
		}
		if err := d.Revoke(commandContext(cmd), userID); err != nil {
			return err
		}
		fmt.Printf("Removed user %d from %s\n", userID, d.ItemID())
		return nil
	},
}

var inviteCmd = &cobra.Command{
	Use:   "invite <id> <username>",
	Short: "Invite a user to manage an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := model.ParseItemID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, log.Default())
		if err != nil {
			return err
		}
		d := perm.New(client, id, log.Default())
		if err := d.Invite(commandContext(cmd), args[1], flagTitle, flagMessage); err != nil {
			return err
		}
		fmt.Printf("Invited %s to %s\n", args[1], id)
		return nil
	},
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [columns|view] [value]",
	Short: "Show or change the display preferences",
	Long: `Show or change the table columns and the default view.

Examples:
  tplan prefs
  tplan prefs columns kind,title,progress,end
  tplan prefs view board`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := prefs.Open(cfg.PrefsPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return runPrefs(os.Stdout, store, args)
	},
}

func runPrefs(out io.Writer, store *prefs.Store, args []string) error {
	if len(args) == 2 {
		switch args[0] {
		case "columns":
			if err := store.SetColumns(strings.Split(args[1], ",")); err != nil {
				return err
			}
		case "view":
			if err := store.SetViewMode(prefs.ViewMode(args[1])); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown preference %q (want columns or view)", args[0])
		}
	}

	show := func(name string) error {
		switch name {
		case "columns":
			cols, err := store.Columns()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "columns: %s\n", strings.Join(cols, ","))
		case "view":
			mode, err := store.ViewMode()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "view: %s\n", mode)
		default:
			return fmt.Errorf("unknown preference %q (want columns or view)", name)
		}
		return nil
	}
	if len(args) > 0 {
		return show(args[0])
	}
	if err := show("columns"); err != nil {
		return err
	}
	return show("view")
}

// Output formatting

func visibleItems(items []model.Item) []model.Item {
	out := items[:0]
	for _, it := range items {
		if it.Kind != model.KindPersonal {
			out = append(out, it)
		}
	}
	return out
}

func printItemsTable(out io.Writer, items []model.Item, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No items")
		return
	}
	fmt.Fprintf(out, "%-8s %-2s %-18s %-8s %-12s %s\n", "ID", "", "PROGRESS", "DIFF", "STATUS", "TITLE")
	for _, it := range items {
		fmt.Fprintf(out, "%-8s %-2s %-18s %-8s %-12s %s\n",
			it.ID,
			format.KindGlyph(it.Kind),
			format.Progress(it.Attributes, 10),
			format.DifficultyLabel(it.DiffLevel),
			format.StatusDisplay(it.Attributes, now),
			format.Title(it.Attributes),
		)
	}
}

type yamlItem struct {
	ID          model.ItemID `yaml:"id"`
	Kind        model.Kind   `yaml:"kind"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description,omitempty"`
	Progress    int          `yaml:"progress"`
	Difficulty  string       `yaml:"difficulty,omitempty"`
	Color       string       `yaml:"color,omitempty"`
	Begin       string       `yaml:"begin,omitempty"`
	End         string       `yaml:"end,omitempty"`
	Owner       string       `yaml:"owner,omitempty"`
	Managers    int          `yaml:"managers,omitempty"`
}

func printItemsYAML(out io.Writer, items []model.Item) error {
	rows := make([]yamlItem, 0, len(items))
	for _, it := range items {
		row := yamlItem{
			ID:       it.ID,
			Kind:     it.Kind,
			Title:    it.TitleText(),
			Progress: it.Progress,
			Color:    it.ColorText(),
			Managers: it.ManagersCount,
		}
		if it.Description != nil {
			row.Description = *it.Description
		}
		if it.DiffLevel != model.DiffUnset {
			row.Difficulty = format.DifficultyLabel(it.DiffLevel)
		}
		if it.BeginTime != nil {
			row.Begin = *it.BeginTime
		}
		if it.EndTime != nil {
			row.End = *it.EndTime
		}
		if it.Owner != nil {
			row.Owner = it.Owner.Username
		}
		rows = append(rows, row)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	return enc.Close()
}

var capabilityColumns = []string{"EDIT", "FINISH", "ADD", "DELETE", "+MEMBER", "-MEMBER"}

func printManagers(out io.Writer, managers []model.Manager) {
	if len(managers) == 0 {
		fmt.Fprintln(out, "No managers")
		return
	}
	fmt.Fprintf(out, "%-8s %-16s", "USER", "NAME")
	for _, c := range capabilityColumns {
		fmt.Fprintf(out, " %-7s", c)
	}
	fmt.Fprintln(out)
	for _, m := range managers {
		fmt.Fprintf(out, "%-8d %-16s", m.User.ID, m.User.Username)
		c := m.Permissions
		for _, v := range []bool{c.CanEdit, c.CanFinish, c.CanAdd, c.CanDelete, c.CanAddMember, c.CanRemoveMember} {
			fmt.Fprintf(out, " %-7s", format.Checkbox(v))
		}
		fmt.Fprintln(out)
	}
}
