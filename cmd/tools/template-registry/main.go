// cmd/tools/template-registry/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"agency-assistant/internal/models"
	"agency-assistant/pkg/registry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		help(stdout)
		return 1
	}

	var err error
	switch args[0] {
	case "export":
		err = exportCmd(args[1:], stdout)
	case "validate":
		err = validateCmd(args[1:], stdout)
	case "set":
		err = setCmd(args[1:], stdout)
	case "add":
		err = addCmd(args[1:], stdout)
	case "help":
		help(stdout)
		return 0
	default:
		help(stdout)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// exportCmd writes the embedded catalogue, merged with an optional
// override, so it can be edited and used as templates.registry_path.
func exportCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	from := fs.String("from", "", "override file merged over the embedded templates")
	out := fs.String("out", "configs/slide-templates.json", "destination file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := registry.Load(*from)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	if err := registry.Save(reg, *out); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	fmt.Fprintf(stdout, "Exported %d templates to %s\n", len(reg.Templates), *out)
	return nil
}

// validateCmd checks an override file on its own and merged over the
// embedded catalogue, which must still cover every deck slide type.
func validateCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("path", "configs/slide-templates.json", "path to registry file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := registry.Load(*path)
	if err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	if err := reg.Require(slideTypes()...); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(stdout, "Registry validation passed. Found %d templates.\n", len(reg.Templates))
	return nil
}

func setCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	path := fs.String("path", "configs/slide-templates.json", "path to registry file")
	slideType := fs.String("type", "", "slide type to update (e.g. cover)")
	field := fs.String("field", "", "field to update (title, layout, description, version, tags)")
	value := fs.String("value", "", "new value for the field")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *slideType == "" || *field == "" {
		return fmt.Errorf("type and field are required for set")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	tmpl, ok := reg.Lookup(*slideType)
	if !ok {
		return fmt.Errorf("template %s not found", *slideType)
	}

	switch *field {
	case "title":
		tmpl.Title = *value
	case "layout":
		tmpl.Layout = *value
	case "description":
		tmpl.Description = *value
	case "version":
		tmpl.Version = *value
	case "tags":
		tmpl.Tags = splitTags(*value)
	default:
		return fmt.Errorf("unknown field: %s", *field)
	}

	reg.Merge(&registry.TemplateRegistry{Templates: []registry.SlideTemplate{tmpl}})
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	if err := registry.Save(reg, *path); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	fmt.Fprintf(stdout, "Updated template %s, field %s to %q\n", *slideType, *field, *value)
	return nil
}

func addCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	path := fs.String("path", "configs/slide-templates.json", "path to registry file")
	slideType := fs.String("type", "", "slide type")
	title := fs.String("title", "", "slide title")
	layout := fs.String("layout", "", "layout name")
	description := fs.String("description", "", "description")
	version := fs.String("version", "1.0.0", "template version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *slideType == "" || *layout == "" {
		return fmt.Errorf("type and layout are required for add")
	}

	reg, err := registry.LoadRegistry(*path)
	if os.IsNotExist(err) {
		reg = &registry.TemplateRegistry{Version: "1.0.0"}
	} else if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if _, exists := reg.Lookup(*slideType); exists {
		return fmt.Errorf("template %s already exists", *slideType)
	}

	reg.Templates = append(reg.Templates, registry.SlideTemplate{
		Type:        *slideType,
		Title:       *title,
		Layout:      *layout,
		Description: *description,
		Version:     *version,
	})
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	if err := registry.Save(reg, *path); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	fmt.Fprintf(stdout, "Added template: %s\n", *slideType)
	return nil
}

func slideTypes() []string {
	out := make([]string, len(models.AllSlideTypes))
	for i, t := range models.AllSlideTypes {
		out[i] = string(t)
	}
	return out
}

func splitTags(value string) []string {
	var tags []string
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func help(w io.Writer) {
	fmt.Fprint(w, `
Usage: template-registry <command> [flags]

Commands:
  export    Write the slide template catalogue to a file
  validate  Validate a template override file
  set       Update one field of a template
  add       Add a template for a new slide type
  help      Show this help message

Examples:
  template-registry export -out configs/slide-templates.json
  template-registry set -type cover -field title -value "Our proposal"
  template-registry validate -path configs/slide-templates.json

Use 'template-registry <command> -h' for more information about a command.
`)
}
