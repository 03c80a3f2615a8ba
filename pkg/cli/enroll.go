package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/seiyo-lab/kaoban/pkg/cli/config"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// enrollFile is one exported enrollment: the person plus one reference
// encoding. Several files with the same name add samples to one person.
type enrollFile struct {
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Title      string    `json:"title"`
	Encoding   []float64 `json:"encoding"`
}

// enrollJob is one parsed file ready to register.
type enrollJob struct {
	personID model.PersonID
	name     string
	note     string
	encoding types.Encoding
}

func cmdEnroll() *cli.Command {
	var dir string
	var policyPath string
	var concurrency int
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Usage:       "Directory of enrollment JSON files ({name, department, title, encoding})",
			Required:    true,
			Sources:     cli.EnvVars("KAOBAN_ENROLL_DIR"),
			Destination: &dir,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the site policy TOML file",
			Sources:     cli.EnvVars("KAOBAN_POLICY"),
			Destination: &policyPath,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Number of samples registered in parallel",
			Value:       4,
			Destination: &concurrency,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "enroll",
		Aliases: []string{"e"},
		Usage:   "Bulk-enroll people from a directory of encoding JSON files",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pol, err := loadPolicy(policyPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			gallery, _, _, err := buildCore(ctx, repo, pol)
			if err != nil {
				return err
			}
			enrollUC := usecase.NewEnrollUseCase(repo, gallery, pol.Matcher.Threshold, nil)

			files, err := readEnrollmentDir(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return goerr.New("no enrollment files found", goerr.V("dir", dir))
			}

			// Re-running enroll adds samples to existing people instead of
			// duplicating them.
			people, err := repo.Person().List(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list registered people")
			}
			byName := make(map[string]*model.Person, len(people))
			for _, p := range people {
				byName[p.Name] = p
			}

			// People are created up front so the parallel phase only adds
			// samples and never races on person creation.
			var jobs []enrollJob
			for _, path := range files {
				entry, err := readEnrollFile(path)
				if err != nil {
					return err
				}

				person, ok := byName[entry.Name]
				if !ok {
					person, err = enrollUC.RegisterPerson(ctx, &model.Person{
						Name:       entry.Name,
						Department: entry.Department,
						Title:      entry.Title,
					})
					if err != nil {
						return goerr.Wrap(err, "failed to register person", goerr.V("name", entry.Name))
					}
					byName[entry.Name] = person
				}

				note := strings.TrimSuffix(filepath.Base(path), ".json")
				jobs = append(jobs, enrollJob{
					personID: person.ID,
					name:     entry.Name,
					note:     note,
					encoding: types.Encoding(entry.Encoding),
				})
			}

			fmt.Printf("Enrolling %d samples for %d people\n", len(jobs), len(byName))

			bar := progressbar.NewOptions(len(jobs),
				progressbar.OptionSetDescription("Registering encodings"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("samples"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)

			var mu sync.Mutex
			var enrolled, failed int

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for _, job := range jobs {
				g.Go(func() error {
					defer func() {
						_ = bar.Add(1)
					}()

					_, warning, err := enrollUC.AddFaceSample(gctx, job.personID, job.encoding, job.note, nil)
					if err != nil {
						logging.Default().Error("failed to add face sample",
							"person", job.name, "note", job.note, "error", err.Error())
						mu.Lock()
						failed++
						mu.Unlock()
						return nil
					}
					if warning != nil {
						logging.Default().Warn("enrolled encoding is close to another person",
							"person", job.name,
							"conflict_person_id", warning.PersonID,
							"distance", warning.Distance)
					}

					mu.Lock()
					enrolled++
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return goerr.Wrap(err, "enrollment aborted")
			}

			fmt.Printf("\nEnrolled: %d, failed: %d\n", enrolled, failed)
			if failed > 0 {
				return goerr.New("some samples failed to enroll", goerr.V("failed", failed))
			}
			return nil
		},
	}
}

// readEnrollmentDir lists the JSON files of an enrollment export in a
// stable order.
func readEnrollmentDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read enrollment directory", goerr.V("dir", dir))
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readEnrollFile(path string) (*enrollFile, error) {
	// #nosec G304 - path comes from the operator-supplied directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read enrollment file", goerr.V("path", path))
	}

	var entry enrollFile
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, goerr.Wrap(err, "malformed enrollment file", goerr.V("path", path))
	}
	if entry.Name == "" {
		return nil, goerr.New("enrollment file requires a name", goerr.V("path", path))
	}
	if err := types.Encoding(entry.Encoding).Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid encoding in enrollment file", goerr.V("path", path))
	}

	return &entry, nil
}
