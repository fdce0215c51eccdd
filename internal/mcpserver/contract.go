package mcpserver

// DataSchemaURI identifies the data schema resource.
const DataSchemaURI = "sitekit://data-schema"

// DataSchema describes the generated context sections and the flattened
// records the search tools return.
const DataSchema = `# Site Data Schema

The site context is a set of named sections, each produced by one plugin
from a YAML source file. Sections that failed to load are absent.

## Sections

- ` + "`collaborators`" + `: settings, categories (groups with people, sorted by
  start_year desc then name) and all_people (every person, including those
  whose category is unknown).
- ` + "`projects`" + `: settings, categories and all_projects. Projects are sorted
  featured first, then start_year desc, then name. Every project has a slug.
- ` + "`media`" + `: settings, categories (non-empty groups only), all_categories,
  all_items (featured first, then newest first), years and total_count.
- ` + "`selected_publications`" + `: categories (publications rendered from BibTeX
  in the order listed), highlights and all_publications. Citation counts come
  from the citation cache with manual overrides applied.

## Records

Search results and get_section summaries use flattened records:

| Field    | Meaning                                            |
|----------|----------------------------------------------------|
| kind     | collaborator, project, media or publication        |
| id       | person name, project slug, media URL, BibTeX key   |
| title    | display title                                      |
| body     | searchable text (bio, description, rendered entry) |
| category | category id                                        |
| tags     | tags, project names or outlet                      |
| url      | canonical link                                     |
| year     | start year, publication year or media year         |

## Dates

Dates are ` + "`YYYY-MM-DD`" + `, ` + "`YYYY-MM`" + ` or ` + "`YYYY`" + `. Anything else is treated as
missing.
`
