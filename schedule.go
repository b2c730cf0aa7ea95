package training

// MinibatchSizeSchedule determines the target minibatch size as training
// progresses, keyed off the cumulative sample count.
type MinibatchSizeSchedule interface {
	MinibatchSize(samplesSeen uint64) int
}

// ConstantSchedule requests the same minibatch size for the whole session.
type ConstantSchedule int

func (s ConstantSchedule) MinibatchSize(samplesSeen uint64) int {
	return int(s)
}

// ScheduleStage is one stage of a StagedSchedule: from FromSamples onward,
// minibatches are requested at Size.
type ScheduleStage struct {
	FromSamples uint64
	Size        int
}

// StagedSchedule switches minibatch sizes at sample-count boundaries.
// Stages must be ordered by ascending FromSamples, with the first stage
// starting at zero.
type StagedSchedule []ScheduleStage

func (s StagedSchedule) MinibatchSize(samplesSeen uint64) int {
	size := 0
	for _, stage := range s {
		if samplesSeen < stage.FromSamples {
			break
		}
		size = stage.Size
	}
	return size
}
