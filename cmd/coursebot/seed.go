package main

import (
	"errors"
	"fmt"

	"github.com/4thel00z/coursebot/internal"
	"github.com/spf13/cobra"
)

type seedCourse struct {
	ID          string
	Name        string
	Description string
	Notes       []string
}

var seedCourses = []seedCourse{
	{
		ID:          "course1",
		Name:        "Introduction to Biology",
		Description: "Learn the basics of biology.",
		Notes: []string{
			"Cells are the basic unit of life. Prokaryotic cells lack a nucleus, while eukaryotic cells keep their DNA inside a membrane-bound nucleus.",
			"Mitosis divides one cell into two genetically identical daughter cells through prophase, metaphase, anaphase and telophase.",
			"Photosynthesis converts light energy, water and carbon dioxide into glucose and oxygen inside the chloroplasts of plant cells.",
		},
	},
	{
		ID:          "course2",
		Name:        "Advanced Mathematics",
		Description: "Deep dive into mathematical theories.",
		Notes: []string{
			"A group is a set with an associative binary operation, an identity element and an inverse for every element.",
			"The fundamental theorem of calculus links differentiation and integration: the integral of a derivative over an interval equals the net change of the function.",
			"Eigenvectors of a linear map keep their direction under the map; the matching eigenvalue is the factor by which they are scaled.",
		},
	},
	{
		ID:          "course3",
		Name:        "Modern History",
		Description: "Explore modern historical events.",
		Notes: []string{
			"The Industrial Revolution began in Britain in the late eighteenth century, moving production from workshops to mechanised factories.",
			"The First World War started in 1914 after the assassination of Archduke Franz Ferdinand and ended with the armistice of November 1918.",
			"The Cold War was a period of geopolitical tension between the United States and the Soviet Union that lasted from 1947 until 1991.",
		},
	},
}

// seedDocuments yields the sample notes with stable ids of the form
// seed/<course>/<n>.
func seedDocuments() []internal.IngestDocumentInput {
	var docs []internal.IngestDocumentInput
	for _, c := range seedCourses {
		docs = append(docs, internal.IngestDocumentInput{
			ID:   fmt.Sprintf("seed/%s/overview", c.ID),
			Text: fmt.Sprintf("%s: %s", c.Name, c.Description),
		})
		for i, note := range c.Notes {
			docs = append(docs, internal.IngestDocumentInput{
				ID:   fmt.Sprintf("seed/%s/%d", c.ID, i+1),
				Text: note,
			})
		}
	}
	return docs
}

func NewSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample course material",
		Long:  `Ingest sample notes for three demo courses. Documents already present are left alone.`,
		Args:  cobra.NoArgs,
		RunE:  makeSeedRunner(a),
	}
}

func makeSeedRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		pipeline, err := a.Pipeline(cmd)
		if err != nil {
			return err
		}
		uc := internal.NewIngestDocumentUseCase(pipeline)

		var added, skipped int
		for _, doc := range seedDocuments() {
			_, err := uc.Execute(cmd.Context(), doc)
			switch {
			case err == nil:
				added++
			case errors.Is(err, internal.ErrDuplicateID):
				skipped++
			default:
				return fmt.Errorf("seed %s: %w", doc.ID, err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d documents (%d already present).\n", added, skipped)
		return nil
	}
}
