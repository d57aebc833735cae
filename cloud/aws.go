package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
)

type awsController struct {
	cfg aws.Config
}

func newAWSController(region v1.Region, secrets *v1.SecretBundle) (*awsController, error) {
	awsRegion, ok := v1.AWSRegions[region]
	if !ok {
		return nil, v1.ErrUnsupported("region", region)
	}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(awsRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			secrets.AWSAccessKey, secrets.AWSSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("building aws config: %w", err)
	}
	return &awsController{cfg: cfg}, nil
}

// CheckCredentials calls STS GetCallerIdentity, the cheapest call that
// requires valid signing credentials.
func (c *awsController) CheckCredentials(ctx context.Context) error {
	client := sts.NewFromConfig(c.cfg)
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

func (c *awsController) Power(ctx context.Context, action v1.PowerAction, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	client := ec2.NewFromConfig(c.cfg)
	var err error
	switch action {
	case v1.PowerActionOn:
		_, err = client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: resourceIDs})
	case v1.PowerActionOff:
		_, err = client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: resourceIDs})
	case v1.PowerActionRestart:
		_, err = client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: resourceIDs})
	default:
		return v1.ErrUnsupported("power action", action)
	}
	if err != nil {
		return fmt.Errorf("applying power action %s: %w", action, err)
	}
	return nil
}
