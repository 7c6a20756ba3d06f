package submit

import (
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/antgonza/qp-woltka/internal/config"
)

//go:embed support_files/*.tmpl
var templateFS embed.FS

var scriptTemplates = template.Must(template.ParseFS(templateFS, "support_files/*.tmpl"))

// maxArrayJobs is the scheduler cap on array indices; with more input
// files than this, files are packed into each array task.
const maxArrayJobs = 1024

// woltkaRanks are the classification ranks produced per sample and
// merged per rank afterwards.
var woltkaRanks = []string{"phylum", "genus", "species", "free", "none"}

// Request carries everything the builder needs to render the main and
// merge scripts for one job.
type Request struct {
	// JobID is the Qiita job id, used as the scheduler job name.
	JobID string
	// URL is the Qiita server url, embedded in the merge script so it
	// can call finish_woltka.
	URL string
	// OutputDir is where scripts, details file and results live.
	OutputDir string
	// Database is the path prefix of the bowtie2 reference database.
	Database string
	// Environment is the shell line entering the pipeline's conda env.
	Environment string
	// PrepPath is the preparation information file, forwarded to
	// woltka_merge.
	PrepPath string
	// Files are the per-sample input path prefixes.
	Files []string
	// Profiles are the scheduler resource requests.
	Profiles config.Profiles
	// Family decides the script header dialect.
	Family Family
}

// DatabaseFiles are the companion files shipped next to a bowtie2
// database.
type DatabaseFiles struct {
	Taxonomy    string
	Coordinates string // empty when the database ships no .coords file
}

// FindDatabaseFiles discovers the companion files of a database by
// globbing its path prefix. The .tax taxonomy is required; gene
// coordinates are optional and enable the per-gene classification.
func FindDatabaseFiles(database string) (*DatabaseFiles, error) {
	matches, err := filepath.Glob(database + "*")
	if err != nil {
		return nil, fmt.Errorf("globbing database files: %w", err)
	}

	var db DatabaseFiles
	for _, m := range matches {
		switch {
		case strings.HasSuffix(m, ".tax") && db.Taxonomy == "":
			db.Taxonomy = m
		case strings.HasSuffix(m, ".coords") && db.Coordinates == "":
			db.Coordinates = m
		}
	}
	if db.Taxonomy == "" {
		return nil, fmt.Errorf("database %s has no .tax taxonomy file", database)
	}
	return &db, nil
}

// WoltkaToArray renders the main alignment array script and its merge
// script into the output directory and returns both paths. It is a pure
// templating step: nothing is executed here.
func WoltkaToArray(req Request) (mainPath, mergePath string, err error) {
	db, err := FindDatabaseFiles(req.Database)
	if err != nil {
		return "", "", err
	}

	cpus := req.Profiles.Main.CPUs

	// woltka assumes R1 and R2 are combined even though it does not use
	// the paired-end data, so concatenate by prefix first. cat is safe
	// with gzip'd data.
	concat := "cat {infile}*.fastq.gz > {outfile}.fastq.gz"
	bowtie2 := fmt.Sprintf("bowtie2 -p %d -x %s "+
		"-q {outfile}.fastq.gz -S {outfile}.sam --seed 42 "+
		`--very-sensitive -k 16 --np 1 --mp "1,1" `+
		`--rdg "0,1" --rfg "0,1" --score-min "L,0,-0.05" `+
		"--no-head --no-unal", cpus, req.Database)
	woltka := fmt.Sprintf("woltka classify -i {outfile}.sam "+
		"-o {outfile}.woltka-taxa --no-demux --lineage %s --rank %s",
		db.Taxonomy, strings.Join(woltkaRanks, ","))
	xz := fmt.Sprintf("xz -9 -T%d -c {outfile}.sam > {outfile}.xz", cpus)

	parts := []string{concat, bowtie2, woltka}
	if db.Coordinates != "" {
		parts = append(parts, fmt.Sprintf("woltka classify -i {outfile}.sam "+
			"-c %s -o {outfile}.woltka-per-gene --no-demux", db.Coordinates))
	}
	parts = append(parts, xz)

	mainPath, err = toArray(req, req.Profiles.Main, strings.Join(parts, "; "), "sam")
	if err != nil {
		return "", "", err
	}

	mergePath, err = writeMergeScript(req, woltkaMerges(req, db), true)
	if err != nil {
		return "", "", err
	}
	return mainPath, mergePath, nil
}

// woltkaMerges builds one woltka_merge invocation per rank, all
// backgrounded so they run at once. Exactly one of the merges carries
// --rename: the per-gene merge when coordinates exist, the last rank
// merge otherwise.
func woltkaMerges(req Request, db *DatabaseFiles) []string {
	mergeInv := fmt.Sprintf("woltka_merge --prep %s --base %s", req.PrepPath, req.OutputDir)

	var merges []string
	for _, rank := range woltkaRanks {
		merges = append(merges, fmt.Sprintf(
			`%s --name %s --glob "*.woltka-taxa/%s.biom" &`, mergeInv, rank, rank))
	}
	if db.Coordinates != "" {
		merges = append(merges, fmt.Sprintf(
			`%s --name per-gene --glob "*.woltka-per-gene" --rename &`, mergeInv))
	} else {
		last := strings.TrimSuffix(merges[len(merges)-1], "&")
		merges[len(merges)-1] = last + "--rename &"
	}
	return merges
}

// SynDNAToArray renders the SynDNA insert/plasmid removal scripts: the
// array job aligns each read file against the SynDNA/plasmid index and
// keeps the unaligned reads, the merge job quantifies what was removed.
// This command uses the earlier dispatch shape, so Files are the read
// files themselves (no run_prefix globbing, no prep reference).
func SynDNAToArray(req Request) (mainPath, mergePath string, err error) {
	cpus := req.Profiles.Main.CPUs

	bowtie2 := fmt.Sprintf("bowtie2 -p %d -x %s "+
		"-q {infile} -S {outfile}.sam --seed 42 "+
		"--very-sensitive --un-gz {outfile}.filtered.fastq.gz "+
		"--no-head --no-unal", cpus, req.Database)
	xz := fmt.Sprintf("xz -9 -T%d -c {outfile}.sam > {outfile}.xz", cpus)
	cmdFmt := bowtie2 + "; " + xz

	mainPath, err = toArray(req, req.Profiles.Main, cmdFmt, "sam")
	if err != nil {
		return "", "", err
	}

	merges := []string{fmt.Sprintf(
		`syndna_quantify --base %s --name syndna --glob "*.filtered.fastq.gz" &`, req.OutputDir)}
	mergePath, err = writeMergeScript(req, merges, false)
	if err != nil {
		return "", "", err
	}
	return mainPath, mergePath, nil
}

// arrayStep is one packed file slot within an array task.
type arrayStep struct {
	Offset  int
	Command string
}

// toArray writes the details file and the array script, packing files
// into at most maxArrayJobs tasks, and returns the script path.
func toArray(req Request, res config.Resources, commandFormat, outputExt string) (string, error) {
	if len(req.Files) == 0 {
		return "", fmt.Errorf("no input files to submit")
	}
	if !strings.Contains(commandFormat, "{infile}") || !strings.Contains(commandFormat, "{outfile}") {
		return "", fmt.Errorf("command format lacks {infile}/{outfile} placeholders")
	}

	nFiles := len(req.Files)
	perJob := 1
	nJobs := nFiles
	if nFiles > maxArrayJobs {
		perJob = int(math.Ceil(float64(nFiles) / float64(maxArrayJobs)))
		nJobs = int(math.Ceil(float64(nFiles) / float64(perJob)))
	}

	// The details file pairs each input with its output; array tasks
	// look their slice up by line number at run time.
	detailsPath := filepath.Join(req.OutputDir, req.JobID+".array-details")
	var details strings.Builder
	for _, f := range req.Files {
		fmt.Fprintf(&details, "%s\t%s/%s.%s\n",
			f, req.OutputDir, filepath.Base(f), outputExt)
	}
	if err := os.WriteFile(detailsPath, []byte(details.String()), 0644); err != nil {
		return "", fmt.Errorf("writing array details: %w", err)
	}

	// Offsets are reversed so each task processes lines N, N+1, N+2 of
	// the details file; the array index is 1-based.
	steps := make([]arrayStep, 0, perJob)
	for i := perJob - 1; i >= 0; i-- {
		cmd := strings.ReplaceAll(commandFormat, "{infile}", fmt.Sprintf("$infile%d", i))
		cmd = strings.ReplaceAll(cmd, "{outfile}", fmt.Sprintf("$outfile%d", i))
		steps = append(steps, arrayStep{Offset: i, Command: cmd})
	}

	data := map[string]any{
		"Header":      arrayHeader(req.Family, req.JobID, res, req.OutputDir, nJobs, req.Profiles.MaxRunning),
		"Output":      req.OutputDir,
		"Environment": req.Environment,
		"ArrayVar":    arrayVar(req.Family),
		"PerJob":      perJob,
		"NFiles":      nFiles,
		"Details":     detailsPath,
		"Steps":       steps,
	}

	scriptPath := filepath.Join(req.OutputDir, req.JobID+"."+scriptExt(req.Family))
	if err := renderScript(scriptPath, "array.sh.tmpl", data); err != nil {
		return "", err
	}
	return scriptPath, nil
}

// writeMergeScript renders the dependent merge script and returns its
// path. All merge commands are backgrounded and joined by a wait.
func writeMergeScript(req Request, merges []string, tarSams bool) (string, error) {
	if len(merges) >= 32 {
		return "", fmt.Errorf("%d merge commands would oversubscribe the merge job", len(merges))
	}

	// The merges all run at once, so the merge job asks for one cpu per
	// merge regardless of the profile.
	res := req.Profiles.Merge
	res.CPUs = len(merges)

	data := map[string]any{
		"Header":      mergeHeader(req.Family, "merge-"+req.JobID, res, req.OutputDir),
		"Output":      req.OutputDir,
		"Environment": req.Environment,
		"Merges":      merges,
		"TarSams":     tarSams,
		"URL":         req.URL,
		"Name":        req.JobID,
	}

	scriptPath := filepath.Join(req.OutputDir, req.JobID+".merge."+scriptExt(req.Family))
	if err := renderScript(scriptPath, "merge.sh.tmpl", data); err != nil {
		return "", err
	}
	return scriptPath, nil
}

func renderScript(path, templateName string, data any) error {
	var out strings.Builder
	if err := scriptTemplates.ExecuteTemplate(&out, templateName, data); err != nil {
		return fmt.Errorf("rendering %s: %w", templateName, err)
	}
	if err := os.WriteFile(path, []byte(out.String()), 0755); err != nil { //nolint:gosec // scheduler executes the script
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func scriptExt(family Family) string {
	if family == FamilySlurm {
		return "slurm"
	}
	return "qsub"
}

func arrayVar(family Family) string {
	if family == FamilySlurm {
		return "${SLURM_ARRAY_TASK_ID}"
	}
	return "${PBS_ARRAYID}"
}

// arrayHeader renders the scheduler directives for the array job.
func arrayHeader(family Family, name string, res config.Resources, output string, nJobs, maxRunning int) string {
	if family == FamilySlurm {
		return strings.Join([]string{
			"#SBATCH --mail-user qiita.help@gmail.com",
			"#SBATCH -J " + name,
			"#SBATCH -N 1",
			fmt.Sprintf("#SBATCH -n %d", res.CPUs),
			"#SBATCH --time " + res.Walltime,
			"#SBATCH --mem " + res.Memory,
			fmt.Sprintf("#SBATCH -o %s/%s_%%a.log", output, name),
			fmt.Sprintf("#SBATCH -e %s/%s_%%a.err", output, name),
			fmt.Sprintf("#SBATCH --array 1-%d%%%d", nJobs, maxRunning),
		}, "\n")
	}
	return strings.Join([]string{
		"#PBS -M qiita.help@gmail.com",
		"#PBS -N " + name,
		fmt.Sprintf("#PBS -l nodes=1:ppn=%d", res.CPUs),
		"#PBS -l walltime=" + res.Walltime,
		"#PBS -l mem=" + res.Memory,
		fmt.Sprintf("#PBS -o %s/%s_${PBS_ARRAYID}.log", output, name),
		fmt.Sprintf("#PBS -e %s/%s_${PBS_ARRAYID}.err", output, name),
		fmt.Sprintf("#PBS -t 1-%d%%%d", nJobs, maxRunning),
	}, "\n")
}

// mergeHeader renders the scheduler directives for the merge job.
func mergeHeader(family Family, name string, res config.Resources, output string) string {
	if family == FamilySlurm {
		return strings.Join([]string{
			"#SBATCH --mail-user qiita.help@gmail.com",
			"#SBATCH -J " + name,
			"#SBATCH -N 1",
			fmt.Sprintf("#SBATCH -n %d", res.CPUs),
			"#SBATCH --time " + res.Walltime,
			"#SBATCH --mem " + res.Memory,
			fmt.Sprintf("#SBATCH -o %s/%s.log", output, name),
			fmt.Sprintf("#SBATCH -e %s/%s.err", output, name),
		}, "\n")
	}
	return strings.Join([]string{
		"#PBS -M qiita.help@gmail.com",
		"#PBS -N " + name,
		fmt.Sprintf("#PBS -l nodes=1:ppn=%d", res.CPUs),
		"#PBS -l walltime=" + res.Walltime,
		"#PBS -l mem=" + res.Memory,
		fmt.Sprintf("#PBS -o %s/%s.log", output, name),
		fmt.Sprintf("#PBS -e %s/%s.err", output, name),
	}, "\n")
}
