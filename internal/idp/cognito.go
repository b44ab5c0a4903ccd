package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/fieldfront/fieldfront/internal/config"
	"github.com/fieldfront/fieldfront/internal/log"
)

// CognitoProvider implements Provider against an AWS Cognito user pool
// using the USER_PASSWORD_AUTH flow.
type CognitoProvider struct {
	client       *cognitoidentityprovider.Client
	clientID     string
	clientSecret string
}

// NewCognitoProvider builds a provider from the resolved config. The AWS
// default credential chain supplies the API credentials.
func NewCognitoProvider(ctx context.Context, cfg config.CognitoConfig) (*CognitoProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &CognitoProvider{
		client:       cognitoidentityprovider.NewFromConfig(awsCfg),
		clientID:     cfg.ClientID,
		clientSecret: string(cfg.ClientSecret),
	}, nil
}

// PasswordGrant implements Provider.
func (p *CognitoProvider) PasswordGrant(ctx context.Context, identifier, password string) (*AuthResult, error) {
	params := map[string]string{
		"USERNAME": identifier,
		"PASSWORD": password,
	}
	if p.clientSecret != "" {
		params["SECRET_HASH"] = SecretHash(identifier, p.clientID, p.clientSecret)
	}

	out, err := p.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		var userNotFound *types.UserNotFoundException
		if errors.As(err, &notAuthorized) || errors.As(err, &userNotFound) {
			log.LogDebugWithFields("idp", "Password grant rejected", map[string]any{
				"identifier": identifier,
			})
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("initiate auth: %w", err)
	}

	if out.ChallengeName != "" {
		return nil, &ChallengeError{Name: string(out.ChallengeName)}
	}

	result := out.AuthenticationResult
	if result == nil || result.AccessToken == nil {
		return nil, ErrAuthenticationFailed
	}

	tokenType := "Bearer"
	if result.TokenType != nil {
		tokenType = *result.TokenType
	}

	return &AuthResult{
		AccessToken:  *result.AccessToken,
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		TokenType:    tokenType,
		ExpiresIn:    result.ExpiresIn,
	}, nil
}
