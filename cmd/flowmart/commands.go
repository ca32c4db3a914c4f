package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/flowmart/internal/api"
	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/checkout"
	"github.com/kalambet/flowmart/internal/config"
	"github.com/kalambet/flowmart/internal/query"
	"github.com/kalambet/flowmart/internal/storage"
)

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the workflow catalog",
	Long: `Search the workflow catalog on a running server.

Examples:
  flowmart search sync
  flowmart search --tag Marketing
  flowmart search --ai "post new leads to slack"
  flowmart search --page 2 --limit 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.Join(args, " ")
		tag, _ := cmd.Flags().GetString("tag")
		useAI, _ := cmd.Flags().GetBool("ai")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		if useAI && strings.TrimSpace(q) == "" {
			return fmt.Errorf("--ai requires a query")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), searchPath(q, tag, useAI, page, limit))
		if err != nil {
			return err
		}

		var res query.PageResult[catalog.WorkflowRecord]
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if asJSON {
			return writeIndented(os.Stdout, res)
		}
		printPage(os.Stdout, res, useAI)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("tag", "", "only workflows with this tag")
	searchCmd.Flags().Bool("ai", false, "interpret the query with the AI search backend")
	searchCmd.Flags().Int("page", 0, "page number (default 1)")
	searchCmd.Flags().Int("limit", 0, "results per page (default 10)")
	searchCmd.Flags().Bool("json", false, "print the raw page as JSON")
}

// searchPath builds the listing URL, leaving unset parameters out so the
// server applies its defaults.
func searchPath(q, tag string, useAI bool, page, limit int) string {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	if tag != "" {
		v.Set("tag", tag)
	}
	if useAI {
		v.Set("ai", "true")
	}
	if page != 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit != 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if len(v) == 0 {
		return "/v1/workflows"
	}
	return "/v1/workflows?" + v.Encode()
}

func printPage(w io.Writer, res query.PageResult[catalog.WorkflowRecord], ai bool) {
	if len(res.Items) == 0 {
		if ai {
			fmt.Fprintln(w, "No matching workflows. AI search may be unavailable; try a plain search.")
		} else {
			fmt.Fprintln(w, "No workflows found.")
		}
		return
	}

	for _, wf := range res.Items {
		fmt.Fprintf(w, "%s  %-40s %10s  %s\n",
			colorize(colorCyan, fmt.Sprintf("%-4s", wf.ID)),
			truncate(wf.Title, 40),
			formatPrice(wf.Price, string(wf.Currency)),
			joinTags(wf.Tags),
		)
	}
	if res.TotalPages > 0 {
		fmt.Fprintf(w, "\nPage %d of %d (%d workflows)\n", res.Page, res.TotalPages, res.TotalItems)
	}
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workflow with its outline and related workflows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		id := url.PathEscape(args[0])
		resp, err := client.get(cmd.Context(), "/v1/workflows/"+id)
		if err != nil {
			return err
		}
		var detail api.WorkflowDetail
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}

		if asJSON {
			return writeIndented(os.Stdout, detail)
		}

		var related struct {
			Items []catalog.WorkflowRecord `json:"items"`
		}
		if resp, err := client.get(cmd.Context(), "/v1/workflows/"+id+"/related"); err == nil {
			if err := decodeJSON(resp, &related); err != nil {
				printWarning("could not load related workflows: %v", err)
			}
		}

		printDetail(os.Stdout, detail, related.Items)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "print the workflow as JSON")
}

func printDetail(w io.Writer, d api.WorkflowDetail, related []catalog.WorkflowRecord) {
	fmt.Fprintln(w, colorize(colorBold, d.Title))
	fmt.Fprintf(w, "  %s\n\n", d.Description)

	author := d.Author.Name
	if d.Author.Verified {
		author += " (verified)"
	}
	fmt.Fprintf(w, "  Price:     %s\n", formatPrice(d.Price, string(d.Currency)))
	fmt.Fprintf(w, "  Author:    %s\n", author)
	fmt.Fprintf(w, "  Rating:    %.1f (%d downloads)\n", d.Rating, d.Downloads)
	fmt.Fprintf(w, "  Tags:      %s\n", joinTags(d.Tags))

	if len(d.Nodes) > 0 {
		names := make([]string, len(d.Nodes))
		for i, n := range d.Nodes {
			names[i] = n.Name
		}
		fmt.Fprintf(w, "  Connects:  %s\n", strings.Join(names, " → "))
	}

	if len(d.Rendered.Outline) > 0 {
		fmt.Fprintln(w, "\n  Contents:")
		for _, h := range d.Rendered.Outline {
			fmt.Fprintf(w, "  %s- %s\n", strings.Repeat("  ", h.Level), h.Text)
		}
	}

	if len(related) > 0 {
		fmt.Fprintln(w, "\n  Related:")
		for _, r := range related {
			fmt.Fprintf(w, "    %s  %s\n", colorize(colorCyan, r.ID), r.Title)
		}
	}
}

// --- checkout ---

var checkoutCmd = &cobra.Command{
	Use:   "checkout <workflow-id>",
	Short: "Buy a workflow (simulated, no payment is taken)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		email, _ := cmd.Flags().GetString("email")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Processing payment via %s...", provider)
		resp, err := client.post(cmd.Context(), "/v1/checkout", checkout.Request{
			WorkflowID: args[0],
			Provider:   checkout.PaymentProvider(provider),
			Email:      email,
		})
		if err != nil {
			return err
		}

		var receipt checkout.Receipt
		if err := decodeJSON(resp, &receipt); err != nil {
			return err
		}

		printSuccess("Purchased %s for %s", receipt.Title, formatPrice(receipt.Amount, string(receipt.Currency)))
		printStatus("Order", "%s", receipt.OrderID)
		if receipt.Email != "" {
			printStatus("Receipt sent to", "%s", receipt.Email)
		}
		return nil
	},
}

func init() {
	checkoutCmd.Flags().String("provider", string(checkout.ProviderStripe), "payment provider: stripe, paypal or creem")
	checkoutCmd.Flags().String("email", "", "email address for the receipt")
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or provision the workflow catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the workflows of the configured catalog source",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := loadCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		all := store.All()
		printPage(os.Stdout, query.Paginate(all, 1, max(len(all), 1)), false)
		return nil
	},
}

var catalogTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the distinct tags of the configured catalog source",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := loadCatalog(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		for _, t := range store.Tags() {
			fmt.Println(t)
		}
		return nil
	},
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the bundled seed (or a YAML file) into the SQLite catalog",
	Long: `Write workflow records into the SQLite catalog in storage.data_dir,
replacing its contents. Set catalog.source to sqlite to serve from it.

Examples:
  flowmart catalog init
  flowmart catalog init --file ./workflows.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		var src catalog.Source = catalog.SeedSource{}
		if file != "" {
			src = catalog.FileSource{Path: file}
		}
		store, err := catalog.Load(cmd.Context(), src)
		if err != nil {
			return err
		}

		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer db.Close()

		if err := db.SaveWorkflows(cmd.Context(), store.All()); err != nil {
			return err
		}

		printSuccess("Wrote %d workflows to %s", store.Len(), cfg.Storage.DataDir)
		if cfg.Catalog.Source != "sqlite" {
			printWarning("catalog.source is %q; run `flowmart config set catalog.source sqlite` to serve this catalog", cfg.Catalog.Source)
		}
		return nil
	},
}

func init() {
	catalogInitCmd.Flags().String("file", "", "YAML catalog to import instead of the bundled seed")
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogTagsCmd)
	catalogCmd.AddCommand(catalogInitCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <gemini-api-key>",
	Short: "Store the Gemini API key in the platform secret store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return err
		}
		printSuccess("Gemini API key stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetKeyCmd)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
