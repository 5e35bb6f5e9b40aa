package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/crateindex/pkg/crates"
	errs "github.com/matzehuels/crateindex/pkg/errors"
	cio "github.com/matzehuels/crateindex/pkg/io"
)

// sourceFlags select where a published index is read from.
type sourceFlags struct {
	dir       string
	fromRedis bool
	fromJSON  string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "d", "", "index directory (default output.dir)")
	cmd.Flags().BoolVar(&f.fromRedis, "from-redis", false, "read the index from the configured Redis server")
	cmd.Flags().StringVar(&f.fromJSON, "from-json", "", "read the index from a JSON export")
	cmd.MarkFlagsMutuallyExclusive("dir", "from-redis", "from-json")
}

// openIndex loads and decodes a published index.
func (c *CLI) openIndex(ctx context.Context, cmd *cobra.Command, f sourceFlags) (*cio.Index, Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	override(cmd, "dir", &cfg.Output.Dir, f.dir)

	a, err := readArtifacts(ctx, cfg, f)
	if err != nil {
		return nil, cfg, err
	}
	idx, err := a.Open()
	if err != nil {
		return nil, cfg, err
	}
	loggerFromContext(ctx).Debug("index opened", "packages", idx.Packages.Len(),
		"keywords", len(idx.Keywords), "categories", len(idx.Categories))
	return idx, cfg, nil
}

func readArtifacts(ctx context.Context, cfg Config, f sourceFlags) (cio.Artifacts, error) {
	switch {
	case f.fromJSON != "":
		return importArtifacts(f.fromJSON)
	case !f.fromRedis:
		a, err := cio.ReadDir(cfg.Output.Dir)
		if err != nil {
			return cio.Artifacts{}, errs.Wrap(errs.ErrCodeNotFound, err, "no index in %s", cfg.Output.Dir)
		}
		return a, nil
	}
	rs, err := cio.NewRedisSink(cio.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return cio.Artifacts{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "redis")
	}
	defer rs.Close()
	return rs.Read(ctx)
}

// importArtifacts re-encodes a JSON export. Packages keep the order they
// have in the file.
func importArtifacts(path string) (cio.Artifacts, error) {
	pkgs, tables, err := cio.ImportJSON(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cio.Artifacts{}, errs.Wrap(errs.ErrCodeNotFound, err, "no index at %s", path)
		}
		return cio.Artifacts{}, errs.Wrap(errs.ErrCodeDecode, err, "import %s", path)
	}
	a := cio.Encode(pkgs, tables.Keywords, tables.Categories)
	a.LastUpdated = tables.LastUpdated
	return a, nil
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		src     sourceFlags
		top     int
		asJSON  bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect [name...]",
		Short: "Print the top of a published index",
		Long: `Decode a published index and print the highest ranked packages as a table.
With package names as arguments only those packages are shown. --json prints
the whole index as JSON instead, or writes it to --out.`,
		Example: `  crateindex inspect --top 50
  crateindex inspect serde tokio
  crateindex inspect --json --out index.json
  crateindex inspect --from-json index.json serde`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			idx, _, err := c.openIndex(ctx, cmd, src)
			if err != nil {
				return err
			}

			if asJSON {
				pkgs, err := idx.All()
				if err != nil {
					return err
				}
				if outPath != "" {
					if err := cio.ExportJSON(pkgs, idx, outPath); err != nil {
						return errs.Wrap(errs.ErrCodeInternal, err, "export")
					}
					printSuccess("Exported %d packages", len(pkgs))
					printFile(outPath)
					return nil
				}
				return cio.WriteJSON(cmd.OutOrStdout(), pkgs, idx)
			}

			rows, err := selectRows(idx, args, top)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), idx, rows)
		},
	}

	src.register(cmd)
	cmd.Flags().IntVarP(&top, "top", "n", 20, "number of packages to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the index as JSON")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the JSON to a file instead of stdout")
	return cmd
}

// rankedPackage is a decoded record with its 1-based rank.
type rankedPackage struct {
	Rank int
	crates.Package
}

// selectRows decodes the first top records, or the named ones when names is
// not empty.
func selectRows(idx *cio.Index, names []string, top int) ([]rankedPackage, error) {
	if len(names) == 0 {
		n := min(top, idx.Packages.Len())
		out := make([]rankedPackage, 0, max(n, 0))
		for i := 0; i < n; i++ {
			p, err := idx.Packages.Package(i)
			if err != nil {
				return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode package %d", i)
			}
			out = append(out, rankedPackage{Rank: i + 1, Package: p})
		}
		return out, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if err := errs.ValidateCrateName(n); err != nil {
			return nil, err
		}
		want[n] = true
	}
	var out []rankedPackage
	for i := 0; i < idx.Packages.Len() && len(out) < len(want); i++ {
		name, err := idx.Packages.Name(i)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode name %d", i)
		}
		if !want[name] {
			continue
		}
		p, err := idx.Packages.Package(i)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeDecode, err, "decode package %d", i)
		}
		out = append(out, rankedPackage{Rank: i + 1, Package: p})
	}
	if len(out) == 0 {
		return nil, errs.New(errs.ErrCodeNotFound, "no package named %s", strings.Join(names, ", "))
	}
	return out, nil
}

// packageTable builds the lipgloss table used by inspect and browse.
// highlight is the row index to emphasize, or -1.
func packageTable(idx *cio.Index, rows []rankedPackage, highlight int) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			r.Name,
			strconv.FormatUint(uint64(r.Order), 10),
			strconv.FormatUint(uint64(r.NumVersions), 10),
			orDash(crates.Deref(r.LatestStableVersion)),
			orDash(crates.Deref(r.LatestVersion)),
			orDash(strings.Join(idx.KeywordNames(r.Keywords), ", ")),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Name", "Dependents", "Versions", "Stable", "Latest", "Keywords").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case row == highlight:
				return listSelectedStyle
			case col == 0 || col == 2:
				return StyleNumber
			case col == 1:
				return StyleValue
			}
			return StyleDim
		})
}

func renderTable(w io.Writer, idx *cio.Index, rows []rankedPackage) error {
	if _, err := fmt.Fprintln(w, packageTable(idx, rows, -1).Render()); err != nil {
		return err
	}
	footer := fmt.Sprintf("%d of %d packages", len(rows), idx.Packages.Len())
	if idx.LastUpdated != "" {
		footer += " · snapshot " + idx.LastUpdated
	}
	_, err := fmt.Fprintln(w, StyleDim.Render(footer))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
