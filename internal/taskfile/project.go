package taskfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielolaszy/projectmd/internal/logging"
	"github.com/danielolaszy/projectmd/pkg/models"
	"github.com/natefinch/atomic"
)

// taskLineRegex matches task list entries such as
// "* [new] - tasks/setup.md - Set up the project" or
// "- [#42] - tasks/deploy.md - Deploy to production".
var taskLineRegex = regexp.MustCompile(`^\s*[*-]\s+\[(new|#(\d+))\]\s+-\s+(.+?)\s+-\s*(.*?)\s*$`)

// ReadProject loads and parses the project file at path.
func ReadProject(path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}

	project, err := ParseProject(string(data))
	if err != nil {
		return nil, fmt.Errorf("project file %s: %w", path, err)
	}
	return project, nil
}

// ResolvePath returns the location of a task file referenced from a project
// file in root. Absolute references are kept as they are.
func ResolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ParseProject parses the content of a project file: a YAML header with at
// least "backend" and "repo", closed by a "---" line, followed by markdown in
// which every task list entry becomes a TaskReference, in file order.
func ParseProject(content string) (*models.Project, error) {
	text := content
	if first, rest, _ := strings.Cut(content, "\n"); isDelimiter(first) {
		text = rest
	}

	header, body, err := cutHeader(text)
	if err != nil {
		return nil, err
	}

	root, err := decodeHeader(header)
	if err != nil {
		return nil, err
	}

	project := &models.Project{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "backend":
			if err := value.Decode(&project.Config.Backend); err != nil {
				return nil, fmt.Errorf("%w: backend must be a string: %v", ErrParse, err)
			}
		case "repo":
			if err := value.Decode(&project.Config.Repo); err != nil {
				return nil, fmt.Errorf("%w: repo must be a string: %v", ErrParse, err)
			}
		default:
			project.Config.Extra = append(project.Config.Extra, models.Field{Key: key, Value: value})
		}
	}

	if project.Config.Backend == "" {
		return nil, fmt.Errorf("%w: header has no backend", ErrParse)
	}
	if project.Config.Repo == "" {
		return nil, fmt.Errorf("%w: header has no repo", ErrParse)
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		ref, ok, err := parseTaskLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			project.Tasks = append(project.Tasks, ref)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return project, nil
}

func parseTaskLine(line string) (models.TaskReference, bool, error) {
	matches := taskLineRegex.FindStringSubmatch(line)
	if matches == nil {
		return models.TaskReference{}, false, nil
	}

	ref := models.TaskReference{
		Path:        matches[3],
		Description: matches[4],
		Status:      models.NewStatus(),
	}

	if matches[2] != "" {
		number, err := strconv.Atoi(matches[2])
		if err != nil || number <= 0 {
			return models.TaskReference{}, false, fmt.Errorf("%w: invalid issue number in %q", ErrParse, line)
		}
		ref.Status = models.LinkedStatus(number)
	}

	return ref, true, nil
}

// LinkCreated rewrites the "[new]" marker of every task entry whose path is
// in created to "[#n]". Lines that do not match are left untouched.
func LinkCreated(content string, created map[string]int) string {
	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		matches := taskLineRegex.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if matches == nil || matches[2] != "" {
			continue
		}
		number, ok := created[matches[3]]
		if !ok {
			continue
		}
		lines[i] = strings.Replace(line, "[new]", fmt.Sprintf("[#%d]", number), 1)
	}
	return strings.Join(lines, "")
}

// UpdateProjectLinks records newly created issue numbers in the project file
// at path. The file is only rewritten when something changed.
func UpdateProjectLinks(path string, created map[string]int) error {
	if len(created) == 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read project file: %w", err)
	}

	content := string(data)
	updated := LinkCreated(content, created)
	if updated == content {
		return nil
	}

	if err := atomic.WriteFile(path, strings.NewReader(updated)); err != nil {
		return fmt.Errorf("write project file %s: %w", path, err)
	}

	logging.Info("linked new tasks in project file",
		"path", path,
		"count", len(created))

	return nil
}
