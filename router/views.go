package router

import (
	"github.com/wtfashwin/Quiz-App/network"
	"github.com/wtfashwin/Quiz-App/room"
)

func (r *Router) questionView(s *room.State) (network.QuestionView, bool) {
	q, ok := s.CurrentQuestion()
	if !ok {
		return network.QuestionView{}, false
	}
	return network.QuestionView{
		Index:     s.CurrentIndex(),
		Total:     s.QuestionSet().Len(),
		Prompt:    q.Prompt,
		Options:   q.Options,
		TimeLimit: int(r.opts.QuestionTimeout.Seconds()),
		Deadline:  s.Deadline(),
	}, true
}

func (r *Router) roomView(s *room.State) network.RoomView {
	view := network.RoomView{
		ID:            s.ID(),
		Name:          s.Name(),
		HostID:        s.HostID(),
		Phase:         string(s.Phase()),
		Players:       s.Players(),
		Scores:        s.Scores(),
		QuestionCount: s.QuestionSet().Len(),
	}
	if q, ok := r.questionView(s); ok {
		view.CurrentQuestion = &q
	}
	return view
}
