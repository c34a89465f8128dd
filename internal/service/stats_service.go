package service

import (
	"github.com/newbialywhodis/barcapl/internal/repository/interfaces"
)

// StatsService 提供论坛的整体统计
type StatsService struct {
	userRepo interfaces.UserRepository
	postRepo interfaces.PostRepository
}

func NewStatsService(userRepo interfaces.UserRepository, postRepo interfaces.PostRepository) *StatsService {
	return &StatsService{
		userRepo: userRepo,
		postRepo: postRepo,
	}
}

func (s *StatsService) GetForumStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	userCount, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	stats["total_users"] = userCount

	postCount, err := s.postRepo.Count()
	if err != nil {
		return nil, err
	}
	stats["total_posts"] = postCount

	return stats, nil
}
