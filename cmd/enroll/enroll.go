// Package enroll implements the student enrollment command.
package enroll

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/datastore"
	"github.com/jsalmela/attendant/internal/facerec"
)

// Command creates the enroll subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		firstName    string
		lastName     string
		contact      string
		encodingFile string
	)

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a student with a face encoding",
		Long: `Enroll stores a student record with one face encoding. The encoding is
produced by the external recognition pipeline and supplied as a JSON array
of numbers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnroll(settings, firstName, lastName, contact, encodingFile)
		},
	}

	cmd.Flags().StringVar(&firstName, "first", "", "Student first name (required)")
	cmd.Flags().StringVar(&lastName, "last", "", "Student last name")
	cmd.Flags().StringVar(&contact, "contact", "", "Guardian contact address for absence notifications")
	cmd.Flags().StringVar(&encodingFile, "encoding-file", "", "Path to JSON face encoding file (required)")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("encoding-file")

	return cmd
}

func runEnroll(settings *conf.Settings, firstName, lastName, contact, encodingFile string) error {
	data, err := os.ReadFile(encodingFile)
	if err != nil {
		return fmt.Errorf("reading encoding file: %w", err)
	}

	// Round-trip through the encoding type to validate the payload before
	// it reaches the roster.
	encoding, err := facerec.UnmarshalEncoding(data)
	if err != nil {
		return fmt.Errorf("parsing encoding file: %w", err)
	}
	if len(encoding) == 0 {
		return fmt.Errorf("encoding file contains no values")
	}
	stored, err := encoding.Marshal()
	if err != nil {
		return fmt.Errorf("serializing encoding: %w", err)
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	student := &datastore.Student{
		FirstName:       firstName,
		LastName:        lastName,
		GuardianContact: contact,
		FaceEncoding:    stored,
	}
	if err := ds.SaveStudent(student); err != nil {
		return fmt.Errorf("saving student: %w", err)
	}

	fmt.Printf("Enrolled %s (id %d)\n", student.DisplayName(), student.ID)
	return nil
}
