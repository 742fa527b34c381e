package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smart-cookbook/internal/app"
	"smart-cookbook/internal/config"
	"smart-cookbook/internal/mealdb"
	"smart-cookbook/internal/recipe"
	"smart-cookbook/internal/server"
	"smart-cookbook/internal/shopping"
)

// --- Global Command Variables ---
var (
	application *app.App
	cfg         *config.Config

	httpAddr        string
	confirmClear    bool
	generateList    bool
	writeListFile   bool
	searchQuery     string
	filterCategory  string
	filterFavorites bool

	rootCmd = &cobra.Command{
		Use:           "smart-cookbook",
		Short:         "Personal recipe catalog with meal planning and shopping lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.NewFromEnv()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := cfg.NewLogger(os.Stderr)
			application = app.New(cmd.Context(), cfg, logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application == nil {
				return nil
			}
			return application.Close()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := cfg.HTTPAddr
			if httpAddr != "" {
				addr = httpAddr
			}
			return server.New(application, cfg.NewLogger(os.Stderr)).Start(cmd.Context(), addr)
		},
	}

	recipesCmd = &cobra.Command{
		Use:   "recipes",
		Short: "List recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, r := range application.Recipes.Filter(recipe.Filter{
				Search:        searchQuery,
				Category:      filterCategory,
				FavoritesOnly: filterFavorites,
			}) {
				printRecipe(out, r)
			}
			return nil
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export [file]",
		Short: "Export all data as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := application.Export(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
			return nil
		},
	}

	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import data from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}
			if !application.Import(cmd.Context(), data) {
				return errors.New("import failed: file is not a valid export")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes\n", len(application.Recipes.List()))
			return nil
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored recipes, plans, shopping items and collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmClear {
				return errors.New("refusing to clear data without --yes")
			}
			application.ClearAll(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "All data cleared.")
			return nil
		},
	}

	shoppingListCmd = &cobra.Command{
		Use:   "shopping-list",
		Short: "Show the shopping list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generateList {
				added := application.GenerateShoppingList(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d items from the meal plan.\n", len(added))
			}
			items := application.Shopping.Items()
			text := shopping.ExportAsText(items)
			if writeListFile {
				name := shopping.ExportFileName(time.Now())
				if err := os.WriteFile(name, []byte(text), 0o600); err != nil {
					return fmt.Errorf("failed to write shopping list: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", name)
				return nil
			}
			c := shopping.Count(items)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%d to buy, %d done\n", text, c.Unchecked, c.Checked)
			return nil
		},
	}

	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "Browse and import recipes from TheMealDB",
	}

	discoverSearchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Search TheMealDB by meal name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meals := application.MealDB.SearchByName(cmd.Context(), strings.Join(args, " "))
			if len(meals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No meals found.")
				return nil
			}
			for _, m := range meals {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%s)\n", m.ID, m.Name, m.Category)
			}
			return nil
		},
	}

	discoverRandomCmd = &cobra.Command{
		Use:   "random",
		Short: "Show a random TheMealDB meal",
		RunE: func(cmd *cobra.Command, args []string) error {
			meal, ok := application.MealDB.Random(cmd.Context())
			if !ok {
				return errors.New("no meal available right now")
			}
			d := mealdb.ConvertToDraft(meal)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", d.Title, meal.ID)
			for _, ing := range d.Ingredients {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", ing)
			}
			return nil
		},
	}

	discoverImportCmd = &cobra.Command{
		Use:   "import <meal-id>",
		Short: "Import a TheMealDB meal into the cookbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.ImportMeal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecipe(cmd.OutOrStdout(), r)
			return nil
		},
	}

	clipCmd = &cobra.Command{
		Use:   "clip <url>",
		Short: "Import a recipe from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := application.ClipURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecipe(cmd.OutOrStdout(), r)
			return nil
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "listen address (overrides COOKBOOK_HTTP_ADDR)")
	clearCmd.Flags().BoolVar(&confirmClear, "yes", false, "confirm deleting all data")
	shoppingListCmd.Flags().BoolVar(&generateList, "generate", false, "add the meal plan's ingredients first")
	shoppingListCmd.Flags().BoolVar(&writeListFile, "save", false, "write the list to shopping-list-<date>.txt")
	recipesCmd.Flags().StringVarP(&searchQuery, "search", "s", "", "match title, ingredients or tags")
	recipesCmd.Flags().StringVarP(&filterCategory, "category", "c", "", "only this category")
	recipesCmd.Flags().BoolVarP(&filterFavorites, "favorites", "f", false, "only favorites")

	discoverCmd.AddCommand(discoverSearchCmd, discoverRandomCmd, discoverImportCmd)
	rootCmd.AddCommand(serveCmd, recipesCmd, exportCmd, importCmd, clearCmd, shoppingListCmd, discoverCmd, clipCmd)
}

func printRecipe(w io.Writer, r recipe.Recipe) {
	fav := ""
	if r.IsFavorite {
		fav = " ★"
	}
	fmt.Fprintf(w, "%s  %s%s [%s]\n", r.ID, r.Title, fav, r.Category)
}
