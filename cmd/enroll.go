package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/codewithmutahir/timeclock/internal/config"
	"github.com/codewithmutahir/timeclock/internal/database"
	"github.com/codewithmutahir/timeclock/internal/database/postgres"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <employee-id> <descriptor.json>",
	Short: "Enroll an employee's face descriptor",
	Long: `Enroll a face descriptor for an employee from a JSON file produced by
the capture tooling ({"name": ..., "descriptor": [128 floats]}).
Re-enrolling overwrites the stored descriptor.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

var enrollBulkCmd = &cobra.Command{
	Use:   "bulk <descriptors.json>",
	Short: "Enroll face descriptors in bulk",
	Long: `Enroll descriptors for many employees at once from a JSON array of
{"employee_id": ..., "name": ..., "descriptor": [...]} rows. Rows with an
invalid descriptor are skipped and reported; missing employee IDs are
derived from the normalized employee name.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollBulk,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.AddCommand(enrollBulkCmd)

	enrollCmd.Flags().String("name", "", "Display name (overrides the name in the file)")
}

// enrollmentRow is one descriptor in an enrollment file.
type enrollmentRow struct {
	EmployeeID string    `json:"employee_id,omitempty"`
	Name       string    `json:"name"`
	Descriptor []float32 `json:"descriptor"`
}

// employeeIDFromName derives a stable employee ID from a display name.
func employeeIDFromName(name string) string {
	return strings.ReplaceAll(facematch.NormalizeEmployeeName(name), " ", "-")
}

func openFaceRepository() (*postgres.FaceRepository, *postgres.Pool, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return postgres.NewFaceRepository(pool), pool, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	employeeID, file := args[0], args[1]

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading descriptor file: %w", err)
	}
	var row enrollmentRow
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("parsing descriptor file: %w", err)
	}
	if name := mustGetString(cmd, "name"); name != "" {
		row.Name = name
	}
	if facematch.NormalizeEmployeeName(row.Name) == "" {
		return errors.New("employee name is required (in the file or via --name)")
	}
	if err := facematch.ValidateDescriptor(row.Descriptor); err != nil {
		return err
	}

	repo, pool, err := openFaceRepository()
	if err != nil {
		return err
	}
	defer pool.Close()

	d := database.StoredDescriptor{
		EmployeeID: employeeID,
		Name:       strings.TrimSpace(row.Name),
		Descriptor: row.Descriptor,
		UpdatedAt:  time.Now(),
	}
	if err := repo.Save(context.Background(), d); err != nil {
		return fmt.Errorf("saving descriptor: %w", err)
	}

	fmt.Printf("Enrolled %s (%s)\n", d.Name, employeeID)
	return nil
}

func runEnrollBulk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading descriptor file: %w", err)
	}
	var rows []enrollmentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parsing descriptor file: %w", err)
	}
	if len(rows) == 0 {
		return errors.New("descriptor file contains no rows")
	}

	repo, pool, err := openFaceRepository()
	if err != nil {
		return err
	}
	defer pool.Close()

	bar := progressbar.Default(int64(len(rows)), "enrolling")
	enrolled, skipped := 0, 0
	for _, row := range rows {
		_ = bar.Add(1)

		if facematch.NormalizeEmployeeName(row.Name) == "" {
			skipped++
			continue
		}
		if err := facematch.ValidateDescriptor(row.Descriptor); err != nil {
			skipped++
			continue
		}
		employeeID := row.EmployeeID
		if employeeID == "" {
			employeeID = employeeIDFromName(row.Name)
		}

		d := database.StoredDescriptor{
			EmployeeID: employeeID,
			Name:       strings.TrimSpace(row.Name),
			Descriptor: row.Descriptor,
			UpdatedAt:  time.Now(),
		}
		if err := repo.Save(context.Background(), d); err != nil {
			return fmt.Errorf("saving descriptor for %s: %w", employeeID, err)
		}
		enrolled++
	}

	fmt.Printf("Enrolled %d descriptors, skipped %d invalid rows\n", enrolled, skipped)
	return nil
}
