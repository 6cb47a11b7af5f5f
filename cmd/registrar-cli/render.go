package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/noah-isme/registrar-api/internal/models"
)

func renderTermEnd(w io.Writer, report *models.TermEndReport) {
	color.New(color.FgCyan).Fprintf(w, "\n=== Term end: %s ===\n", report.TermID)
	fmt.Fprintf(w, "students processed: %d\nsections locked:    %d\n", report.StudentsProcessed, report.SectionsLocked)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Standing", "Students"})
	for _, standing := range models.AllStandings {
		table.Append([]string{string(standing), fmt.Sprintf("%d", report.StandingCounts[standing])})
	}
	table.Render()
}

func renderTranscript(w io.Writer, transcript *models.Transcript) {
	color.New(color.FgCyan).Fprintf(w, "\n=== Transcript: %s ===\n", transcript.StudentID)
	if len(transcript.Terms) == 0 {
		color.New(color.FgYellow).Fprintln(w, "no posted results")
		return
	}
	for _, term := range transcript.Terms {
		color.New(color.FgYellow).Fprintf(w, "\n%s (%s)\n", term.TermName, term.StartDate.Format("2006-01-02"))
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Course", "Title", "Credits", "Score", "Grade", "Points"})
		for _, e := range term.Entries {
			table.Append([]string{
				e.CourseCode,
				e.CourseTitle,
				fmt.Sprintf("%g", e.Credits),
				fmt.Sprintf("%.2f", e.Percentage),
				string(e.Letter),
				fmt.Sprintf("%g", e.GradePoints),
			})
		}
		table.SetFooter([]string{"", "", fmt.Sprintf("%g", term.Credits), "", "GPA", fmt.Sprintf("%.2f", term.GPA)})
		table.Render()
	}
	color.New(color.FgGreen).Fprintf(w, "\ncumulative GPA %.2f over %g credits\n", transcript.CumulativeGPA, transcript.TotalCredits)
}

func renderTermGPAs(w io.Writer, termID string, gpas []models.StudentTermGPA) {
	color.New(color.FgCyan).Fprintf(w, "\n=== GPA by student: %s ===\n", termID)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Credits", "GPA"})
	for _, g := range gpas {
		table.Append([]string{g.StudentID, fmt.Sprintf("%g", g.Credits), fmt.Sprintf("%.2f", g.GPA)})
	}
	table.Render()
}
