package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"script-to-video-server/adapters"
	"script-to-video-server/models"
	"script-to-video-server/storage"
)

// pipelineState carries the accumulated artifacts of one generation run
// between stages. Stage functions fill it in order; on a stage retry,
// sub-steps that already produced output are skipped.
type pipelineState struct {
	gen     *models.Generation
	workDir string

	stageFloor  int // progress checkpoint of the previous stage
	stageTarget int // checkpoint reached when this stage completes
	progress    func(percent int, message string)

	analysis          *adapters.Analysis
	analysisSynthetic bool

	voiceMap          map[string]string
	voiceSynthetic    bool
	clipPaths         []string
	clipSynthetic     int
	audioPath         string
	audioSynthetic    bool
	combinedPath      string
	combinedSynthetic bool
	enhancedPath      string
	enhancedSynthetic bool
	review            *adapters.Review
	reviewSynthetic   bool
	objectKey         string
	resultURI         string
}

// interpolate maps sub-step i of n onto the stage's progress band.
func (st *pipelineState) interpolate(i, n int) int {
	if n <= 0 {
		return st.stageTarget
	}
	return st.stageFloor + (st.stageTarget-st.stageFloor)*i/n
}

func (st *pipelineState) path(name string) string {
	return filepath.Join(st.workDir, name)
}

func (o *Orchestrator) stageAnalyze(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	if st.gen.Script == "" {
		return nil, &adapters.Error{Kind: adapters.KindInvalidInput, Service: "analysis", Msg: "script is empty"}
	}

	analysis, err := o.registry.Analysis.AnalyzeScript(ctx, st.gen.Script)
	if err != nil {
		if adapters.KindOf(err) != adapters.KindUnavailable {
			return nil, err
		}
		o.logger.Warn("analysis service unavailable, using fallback breakdown",
			zap.String("generation_id", st.gen.ID))
		analysis = adapters.FallbackAnalysis(st.gen.Script)
		st.analysisSynthetic = true
	}
	st.analysis = analysis

	scenesPath := st.path("scenes.json")
	data, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	if err := os.WriteFile(scenesPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write analysis: %w", err)
	}

	return &models.Artifact{
		Kind:      "scenes",
		Path:      scenesPath,
		Synthetic: st.analysisSynthetic,
		Meta: map[string]string{
			"scenes":     strconv.Itoa(len(analysis.Scenes)),
			"characters": strconv.Itoa(len(analysis.Characters)),
			"theme":      analysis.Theme,
		},
	}, nil
}

func (o *Orchestrator) stageAssignVoices(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	assignments, err := o.registry.Voices.Assign(ctx, st.analysis.Characters)
	if err != nil {
		if adapters.KindOf(err) != adapters.KindUnavailable {
			return nil, err
		}
		o.logger.Warn("voice service unavailable, using built-in voices",
			zap.String("generation_id", st.gen.ID))
		assignments = adapters.FallbackAssign(st.analysis.Characters)
		st.voiceSynthetic = true
	}
	st.voiceMap = assignments

	mapPath := st.path("voice_map.json")
	data, _ := json.Marshal(assignments)
	if err := os.WriteFile(mapPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write voice map: %w", err)
	}

	return &models.Artifact{
		Kind:      "voice_map",
		Path:      mapPath,
		Synthetic: st.voiceSynthetic,
		Meta:      map[string]string{"voices": strconv.Itoa(len(assignments))},
	}, nil
}

func (o *Orchestrator) stageSynthesizeClips(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	scenes := st.analysis.Scenes
	if st.clipPaths == nil {
		st.clipPaths = make([]string, len(scenes))
	}

	for i, scene := range scenes {
		if st.clipPaths[i] != "" {
			continue // produced on an earlier attempt
		}
		prompt := adapters.TruncatePrompt(scene.Description)
		clip, err := o.registry.Video.SynthesizeClip(ctx, prompt, st.gen.AspectRatio, scene.DurationSec)
		if err != nil {
			if adapters.KindOf(err) != adapters.KindUnavailable {
				return nil, err
			}
			clip = adapters.SyntheticClip(prompt, st.gen.AspectRatio, scene.DurationSec)
			st.clipSynthetic++
		}
		clipPath := st.path(fmt.Sprintf("clip_%03d.mp4", i+1))
		if err := os.WriteFile(clipPath, clip, 0o644); err != nil {
			return nil, fmt.Errorf("write clip %d: %w", i+1, err)
		}
		st.clipPaths[i] = clipPath
		st.progress(st.interpolate(i+1, len(scenes)),
			fmt.Sprintf("Generating video clips (%d/%d)", i+1, len(scenes)))
	}

	return &models.Artifact{
		Kind:      "clips",
		Path:      st.workDir,
		Synthetic: st.clipSynthetic > 0,
		Meta: map[string]string{
			"count":     strconv.Itoa(len(st.clipPaths)),
			"synthetic": strconv.Itoa(st.clipSynthetic),
		},
	}, nil
}

func (o *Orchestrator) stageSynthesizeAudio(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	voice := st.narratorVoice()
	var combined []byte

	for i, scene := range st.analysis.Scenes {
		text := scene.AudioText
		if text == "" {
			text = scene.Description
		}
		segment, err := o.registry.Audio.Synthesize(ctx, text, voice)
		if err != nil {
			if adapters.KindOf(err) != adapters.KindUnavailable {
				return nil, err
			}
			segment = adapters.SyntheticAudio(text)
			st.audioSynthetic = true
		}
		combined = append(combined, segment...)
		st.progress(st.interpolate(i+1, len(st.analysis.Scenes)),
			fmt.Sprintf("Generating narration audio (%d/%d)", i+1, len(st.analysis.Scenes)))
	}

	audioPath := st.path("narration.mp3")
	if err := os.WriteFile(audioPath, combined, 0o644); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	st.audioPath = audioPath

	return &models.Artifact{
		Kind:      "audio",
		Path:      audioPath,
		Synthetic: st.audioSynthetic,
		Meta:      map[string]string{"voice": voice},
	}, nil
}

func (o *Orchestrator) stageCombine(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	outPath := st.path("combined.mp4")

	_, ffmpegErr := exec.LookPath("ffmpeg")
	if ffmpegErr != nil || st.clipSynthetic > 0 || st.audioSynthetic {
		// Synthetic placeholder inputs are not real media, and without a
		// local assembler real ones cannot be muxed either; a raw
		// concatenation keeps the degraded pipeline completing.
		if err := concatFiles(outPath, append(append([]string{}, st.clipPaths...), st.audioPath)); err != nil {
			return nil, fmt.Errorf("concat fallback: %w", err)
		}
		st.combinedPath = outPath
		st.combinedSynthetic = true
		return &models.Artifact{
			Kind:      "video",
			Path:      outPath,
			Synthetic: true,
			Meta:      map[string]string{"assembler": "concat"},
		}, nil
	}

	listPath := st.path("clips.txt")
	var list strings.Builder
	for _, clip := range st.clipPaths {
		fmt.Fprintf(&list, "file '%s'\n", clip)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write concat list: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", st.audioPath,
		"-c:v", "libx264", "-c:a", "aac",
		"-shortest", "-y", outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &adapters.Error{
			Kind:    adapters.KindRejected,
			Service: "assembler",
			Msg:     fmt.Sprintf("ffmpeg: %v: %s", err, tail(out, 512)),
		}
	}
	st.combinedPath = outPath

	return &models.Artifact{
		Kind: "video",
		Path: outPath,
		Meta: map[string]string{"assembler": "ffmpeg"},
	}, nil
}

func (o *Orchestrator) stageEnhance(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	outPath := st.path("enhanced.mp4")
	preset := "cinematic"

	enhanced, err := o.registry.Enhance.Enhance(ctx, st.combinedPath, preset)
	if err != nil {
		if adapters.KindOf(err) != adapters.KindUnavailable {
			return nil, err
		}
		o.logger.Warn("enhancement service unavailable, passing video through",
			zap.String("generation_id", st.gen.ID))
		enhanced, err = os.ReadFile(st.combinedPath)
		if err != nil {
			return nil, fmt.Errorf("read combined video: %w", err)
		}
		st.enhancedSynthetic = true
	}

	if err := os.WriteFile(outPath, enhanced, 0o644); err != nil {
		return nil, fmt.Errorf("write enhanced video: %w", err)
	}
	st.enhancedPath = outPath

	return &models.Artifact{
		Kind:      "enhanced_video",
		Path:      outPath,
		Synthetic: st.enhancedSynthetic,
		Meta:      map[string]string{"preset": preset},
	}, nil
}

func (o *Orchestrator) stageFinalReview(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	review, err := o.registry.Analysis.ReviewVideo(ctx, st.enhancedPath, st.gen.Script)
	if err != nil {
		if adapters.KindOf(err) != adapters.KindUnavailable {
			return nil, err
		}
		review = adapters.FallbackReview()
		st.reviewSynthetic = true
	}
	st.review = review

	if !review.Approved {
		return nil, &adapters.Error{
			Kind:    adapters.KindRejected,
			Service: "review",
			Msg:     "final review rejected: " + review.Notes,
		}
	}

	return &models.Artifact{
		Kind:      "review",
		Synthetic: st.reviewSynthetic,
		Meta: map[string]string{
			"score": strconv.FormatFloat(review.Score, 'f', 2, 64),
			"notes": review.Notes,
		},
	}, nil
}

func (o *Orchestrator) stageUpload(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	key := fmt.Sprintf("videos/%s.mp4", st.gen.ID)
	uri, err := o.uploader.UploadWithRetry(ctx, st.enhancedPath, key)
	if err != nil {
		// The retry manager already exhausted its own policy, so this
		// stage runs once; the recorded kind still reflects the true
		// failure class.
		kind := adapters.KindRejected
		if storage.IsTransient(err) {
			kind = adapters.KindTransient
		}
		return nil, &adapters.Error{Kind: kind, Service: "storage", Msg: err.Error()}
	}
	st.objectKey = key
	st.resultURI = uri

	return &models.Artifact{
		Kind: "upload",
		Meta: map[string]string{"key": key},
	}, nil
}

func (o *Orchestrator) stageFinalize(ctx context.Context, st *pipelineState) (*models.Artifact, error) {
	meta := map[string]string{
		"object_key": st.objectKey,
		"scenes":     strconv.Itoa(len(st.analysis.Scenes)),
	}
	if info, err := os.Stat(st.enhancedPath); err == nil {
		meta["size_bytes"] = strconv.FormatInt(info.Size(), 10)
	}
	if synthetic := st.syntheticStages(); len(synthetic) > 0 {
		meta["degraded_stages"] = strings.Join(synthetic, ",")
	}

	return &models.Artifact{Kind: "summary", Meta: meta}, nil
}

// narratorVoice picks the narration voice: the first detected
// character's assignment, falling back to any assignment at all.
func (st *pipelineState) narratorVoice() string {
	if len(st.analysis.Characters) > 0 {
		if v, ok := st.voiceMap[st.analysis.Characters[0].Name]; ok {
			return v
		}
	}
	for _, v := range st.voiceMap {
		return v
	}
	return ""
}

func (st *pipelineState) syntheticStages() []string {
	var out []string
	if st.analysisSynthetic {
		out = append(out, models.StageAnalyze)
	}
	if st.voiceSynthetic {
		out = append(out, models.StageAssignVoices)
	}
	if st.clipSynthetic > 0 {
		out = append(out, models.StageSynthesizeClips)
	}
	if st.audioSynthetic {
		out = append(out, models.StageSynthesizeAudio)
	}
	if st.combinedSynthetic {
		out = append(out, models.StageCombine)
	}
	if st.enhancedSynthetic {
		out = append(out, models.StageEnhance)
	}
	if st.reviewSynthetic {
		out = append(out, models.StageFinalReview)
	}
	return out
}

func concatFiles(outPath string, inputs []string) error {
	var combined []byte
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		combined = append(combined, data...)
	}
	return os.WriteFile(outPath, combined, 0o644)
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
