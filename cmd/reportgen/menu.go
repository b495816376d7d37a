package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/FulgerX2007/itsm-report-generator/pkg/host"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// NewMenuCommand creates the menu command
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		view  string
		class string
		key   int64
		lang  string
	)

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Print the report menu items for a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := rootOpts.load()
			if err != nil {
				return err
			}
			v, err := model.ParseView(view)
			if err != nil {
				return err
			}

			svc, err := openServices(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			var set *host.ObjectSet
			if class != "" {
				filter := host.NewFilter(class)
				if key != 0 {
					filter = host.ByKey(class, key)
				}
				if set, err = svc.app.NewObjectSet(filter); err != nil {
					return err
				}
			}
			if lang == "" {
				lang = settings.DefaultLang
			}

			items, err := svc.registrar.EnumItems(set, v, lang)
			if err != nil {
				return err
			}
			shortcuts, err := svc.store.ShortcutActions()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"items":            items,
				"shortcut_actions": shortcuts,
			})
		},
	}

	cmd.Flags().StringVar(&view, "view", "details", "menu view (details|list)")
	cmd.Flags().StringVar(&class, "class", "", "class of the records")
	cmd.Flags().Int64Var(&key, "key", 0, "key of the record")
	cmd.Flags().StringVar(&lang, "lang", "", "language code, e.g. \"NL NL\"")
	return cmd
}
